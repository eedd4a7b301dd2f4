package route

import "github.com/tinylib/msgp/msgp"

// fingerprint serializes (addr_id, key) into a canonical byte sequence
// (spec.md §4.B step 1) using tinylib/msgp's wire-level append helpers —
// the same allocation-conscious encoding approach the teacher's generated
// marshalers use — so the result depends only on the two string values,
// never on Go's in-memory struct/map layout.
func fingerprint(addrID, key string) []byte {
	b := make([]byte, 0, len(addrID)+len(key)+8)
	b = msgp.AppendString(b, addrID)
	b = msgp.AppendString(b, key)
	return b
}
