package route

import (
	"context"
	"errors"
	"testing"

	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/core"
)

type fakeHandle struct {
	id      core.ContainerID
	reply   core.Reply
	failErr error
	bag     core.StatsBag
}

func (f *fakeHandle) ID() core.ContainerID { return f.id }

func (f *fakeHandle) Do(core.Request) (core.Reply, error) {
	if f.failErr != nil {
		return core.Reply{}, f.failErr
	}
	return f.reply, nil
}

func (f *fakeHandle) GetCompactionWorker() (core.CompactionWorkerHandle, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeHandle) GetStats() (core.StatsBag, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return f.bag, nil
}

func TestDoEmptyDirectory(t *testing.T) {
	r := New(core.NewDirectory(nil))
	_, err := r.Do(core.Request{Kind: core.Get, AddrID: "a", Key: "k"})
	var notFound *api.ErrProcessNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrProcessNotFound, got %v", err)
	}
}

func TestDoForwardsToPickedHandle(t *testing.T) {
	h1 := &fakeHandle{id: "c1", reply: core.Reply{Payload: []byte("one")}}
	h2 := &fakeHandle{id: "c2", reply: core.Reply{Payload: []byte("two")}}
	dir := core.NewDirectory([]core.WorkerHandle{h1, h2})
	r := New(dir)

	reply, err := r.Do(core.Request{Kind: core.Get, AddrID: "addr", Key: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reply.Payload) == 0 {
		t.Fatalf("expected a non-empty reply from the picked handle")
	}

	h, pickErr := dir.Pick(fingerprint("addr", "key"))
	if pickErr != nil {
		t.Fatalf("Pick: %v", pickErr)
	}
	want := h.(*fakeHandle).reply.Payload
	if string(reply.Payload) != string(want) {
		t.Fatalf("Do routed to the wrong handle: got %q want %q", reply.Payload, want)
	}
}

func TestFetchByAddrIDConcatenatesInDirectoryOrderAndDropsErrors(t *testing.T) {
	h1 := &fakeHandle{id: "c1", reply: core.Reply{Payload: []byte("a")}}
	h2 := &fakeHandle{id: "c2", failErr: errors.New("boom")}
	h3 := &fakeHandle{id: "c3", reply: core.Reply{Payload: []byte("c")}}
	dir := core.NewDirectory([]core.WorkerHandle{h1, h2, h3})
	r := New(dir)

	out, err := r.FetchByAddrID(context.Background(), "addr", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results (one dropped), got %d", len(out))
	}
	if string(out[0].Payload) != "a" || string(out[1].Payload) != "c" {
		t.Fatalf("results out of Directory order: %+v", out)
	}
}

func TestFetchByKeyTruncatesToMaxKeys(t *testing.T) {
	h1 := &fakeHandle{id: "c1", reply: core.Reply{Payload: []byte("a")}}
	h2 := &fakeHandle{id: "c2", reply: core.Reply{Payload: []byte("b")}}
	h3 := &fakeHandle{id: "c3", reply: core.Reply{Payload: []byte("c")}}
	dir := core.NewDirectory([]core.WorkerHandle{h1, h2, h3})
	r := New(dir)

	out, err := r.FetchByKey(context.Background(), "k", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected truncation to 2 results, got %d", len(out))
	}
}

func TestFetchByKeyAllHandlesFailYieldsNotFound(t *testing.T) {
	h1 := &fakeHandle{id: "c1", failErr: errors.New("boom")}
	dir := core.NewDirectory([]core.WorkerHandle{h1})
	r := New(dir)

	_, err := r.FetchByKey(context.Background(), "k", 0)
	var notFound *api.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsFansOutAndDropsErrors(t *testing.T) {
	h1 := &fakeHandle{id: "c1", bag: core.StatsBag{"n": 1}}
	h2 := &fakeHandle{id: "c2", failErr: errors.New("boom")}
	dir := core.NewDirectory([]core.WorkerHandle{h1, h2})
	r := New(dir)

	out, err := r.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 stats bag (one dropped), got %d", len(out))
	}
}
