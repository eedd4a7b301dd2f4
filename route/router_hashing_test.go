package route_test

import (
	"context"
	"hash/crc32"
	"testing"

	"github.com/tinylib/msgp/msgp"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NVIDIA/aiscompact/core"
	"github.com/NVIDIA/aiscompact/route"
)

type echoHandle struct{ id core.ContainerID }

func (h echoHandle) ID() core.ContainerID { return h.id }
func (h echoHandle) Do(req core.Request) (core.Reply, error) {
	return core.Reply{Payload: []byte(h.id)}, nil
}
func (h echoHandle) GetCompactionWorker() (core.CompactionWorkerHandle, error) { return nil, nil }
func (h echoHandle) GetStats() (core.StatsBag, error)                         { return nil, nil }

func canonicalFingerprint(addrID, key string) []byte {
	b := msgp.AppendString(nil, addrID)
	b = msgp.AppendString(b, key)
	return b
}

var _ = Describe("Request Router hashing", func() {
	var (
		ids     = []core.ContainerID{"c1", "c2", "c3", "c4"}
		addrID  = "addr-42"
		key     = "obj/key"
	)

	It("routes to the (CRC32(F) mod N + 1)-th entry in Directory order", func() {
		handles := make([]core.WorkerHandle, len(ids))
		for i, id := range ids {
			handles[i] = echoHandle{id: id}
		}
		dir := core.NewDirectory(handles)
		r := route.New(dir)

		reply, err := r.Do(core.Request{Kind: core.Get, AddrID: addrID, Key: key})
		Expect(err).NotTo(HaveOccurred())

		fp := canonicalFingerprint(addrID, key)
		idx := int(crc32.ChecksumIEEE(fp) % uint32(len(ids)))
		Expect(string(reply.Payload)).To(Equal(string(ids[idx])))
	})

	It("changes the chosen handle deterministically when Directory order changes", func() {
		forward := make([]core.WorkerHandle, len(ids))
		for i, id := range ids {
			forward[i] = echoHandle{id: id}
		}
		reversed := make([]core.WorkerHandle, len(ids))
		for i, id := range ids {
			reversed[len(ids)-1-i] = echoHandle{id: id}
		}

		rf := route.New(core.NewDirectory(forward))
		rr := route.New(core.NewDirectory(reversed))

		replyForward, err := rf.Do(core.Request{Kind: core.Get, AddrID: addrID, Key: key})
		Expect(err).NotTo(HaveOccurred())
		replyReversed, err := rr.Do(core.Request{Kind: core.Get, AddrID: addrID, Key: key})
		Expect(err).NotTo(HaveOccurred())

		fp := canonicalFingerprint(addrID, key)
		idx := int(crc32.ChecksumIEEE(fp) % uint32(len(ids)))
		Expect(string(replyForward.Payload)).To(Equal(string(ids[idx])))
		Expect(string(replyReversed.Payload)).To(Equal(string(ids[len(ids)-1-idx])))
	})

	It("fans Stats out across every handle", func() {
		handles := make([]core.WorkerHandle, len(ids))
		for i, id := range ids {
			handles[i] = echoHandle{id: id}
		}
		dir := core.NewDirectory(handles)
		r := route.New(dir)

		stats, err := r.Stats(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(HaveLen(len(ids)))
	})
})
