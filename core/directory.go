package core

import (
	"errors"
	"hash/crc32"
	"sort"
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// ErrEmptyDirectory is returned by Pick/First when the Directory has no
// containers. The Router (package route) translates this into the
// api.ErrProcessNotFound token it exposes to its own callers (spec.md §6);
// Directory itself stays below api to avoid a package cycle.
var ErrEmptyDirectory = errors.New("directory is empty")

// Directory is the ordered mapping container-id -> WorkerHandle described
// in spec.md §4.A. Membership and order are treated as immutable during a
// controller run: the Controller snapshots Directory.All() once at Run
// entry (see ctlr.Controller), so concurrent Directory mutation (e.g. a
// container coming online mid-run) is never observed by that run.
type Directory struct {
	mu      sync.RWMutex
	ids     []ContainerID // iteration order; routing hash depends on it
	handles map[ContainerID]WorkerHandle
	// membership sketch for cheap "is this container known" probes
	// (spec.md §3 invariant 6) that skip the RLock and map lookup.
	sketch *cuckoo.Filter
}

// NewDirectory builds a Directory from an ordered slice of handles. The
// caller controls iteration order (e.g. core.Discover's walk order); the
// Directory does not re-sort it, since spec.md §4.A requires iteration
// order to be a Directory property, not a derived one.
func NewDirectory(handles []WorkerHandle) *Directory {
	d := &Directory{
		ids:     make([]ContainerID, 0, len(handles)),
		handles: make(map[ContainerID]WorkerHandle, len(handles)),
		sketch:  cuckoo.NewFilter(nextPow2(uint(len(handles)*2 + 16))),
	}
	for _, h := range handles {
		id := h.ID()
		if _, dup := d.handles[id]; dup {
			continue
		}
		d.ids = append(d.ids, id)
		d.handles[id] = h
		d.sketch.InsertUnique([]byte(id))
	}
	return d
}

func nextPow2(n uint) uint {
	p := uint(1)
	for p < n {
		p <<= 1
	}
	return p
}

// All returns every worker-handle in stable, deterministic order.
func (d *Directory) All() []WorkerHandle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]WorkerHandle, len(d.ids))
	for i, id := range d.ids {
		out[i] = d.handles[id]
	}
	return out
}

// AllIDs returns every container-id in the same stable order as All.
func (d *Directory) AllIDs() []ContainerID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ContainerID, len(d.ids))
	copy(out, d.ids)
	return out
}

// Len reports the current cardinality of the Directory.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ids)
}

// Get resolves a single container-id to its handle.
func (d *Directory) Get(id ContainerID) (WorkerHandle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handles[id]
	return h, ok
}

// Contains does an exact membership check (spec.md §3 invariant 6: "every
// container-id ever in pending/ongoing/locked is in the Directory").
func (d *Directory) Contains(id ContainerID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handles[id]
	return ok
}

// ProbablyContains is a fast, false-positive-tolerant membership probe
// backed by the cuckoo filter sketch: an O(1) sanity check without the
// RLock + map hit. No code in this module calls it outside tests. A "no"
// answer is certain; a "yes" answer should still be confirmed with
// Contains where correctness (not just debugging) matters.
func (d *Directory) ProbablyContains(id ContainerID) bool {
	return d.sketch.Lookup([]byte(id))
}

// Pick resolves a fingerprint to a handle via CRC32(fingerprint) mod N + 1
// (1-based index into the Directory's stable order), per spec.md §4.A/§4.B.
func (d *Directory) Pick(fingerprint []byte) (WorkerHandle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := len(d.ids)
	if n == 0 {
		return nil, ErrEmptyDirectory
	}
	idx := int(crc32.ChecksumIEEE(fingerprint)%uint32(n)) + 1
	return d.handles[d.ids[idx-1]], nil
}

// First returns the handle at position 1, for debugging (spec.md §4.A).
func (d *Directory) First() (WorkerHandle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.ids) == 0 {
		return nil, ErrEmptyDirectory
	}
	return d.handles[d.ids[0]], nil
}

// sortedIDs is a convenience used by bootstrap (Discover) to present a
// deterministic order independent of filesystem walk order.
func sortedIDs(ids []ContainerID) []ContainerID {
	out := make([]ContainerID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
