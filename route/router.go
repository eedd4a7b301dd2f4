// Package route implements the Request Router (spec.md §4.B): a pure
// function of Directory state that resolves a single request to one
// WorkerHandle via the canonical fingerprint hash, and fans the
// multi-result queries out across every handle.
package route

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/core"
)

// Router resolves requests against a Directory. It carries no mutable
// state of its own — every method is a pure function of the Directory
// it was built with (spec.md §4.B: "pure function").
type Router struct {
	dir *core.Directory
}

func New(dir *core.Directory) *Router {
	return &Router{dir: dir}
}

// Do resolves req's (AddrID, Key) fingerprint to a single handle and
// forwards the request verbatim, returning the worker's reply (spec.md
// §4.B steps 1-4).
func (r *Router) Do(req core.Request) (core.Reply, error) {
	h, err := r.dir.Pick(fingerprint(req.AddrID, req.Key))
	if err != nil {
		return core.Reply{}, &api.ErrProcessNotFound{}
	}
	return h.Do(req)
}

// FetchByAddrID fans a lookup out across every handle in Directory order,
// concatenates the per-handle results, and truncates to maxKeys if it is
// > 0 (spec.md §4.B). Per-handle errors are treated as "no match" and
// dropped, giving partial-success semantics; an empty Directory yields
// api.ErrNotFound.
func (r *Router) FetchByAddrID(ctx context.Context, addrID string, maxKeys int) ([]core.Reply, error) {
	return r.fanOut(ctx, core.Request{Kind: core.Get, AddrID: addrID}, maxKeys)
}

// FetchByKey is FetchByAddrID's key-indexed counterpart.
func (r *Router) FetchByKey(ctx context.Context, key string, maxKeys int) ([]core.Reply, error) {
	return r.fanOut(ctx, core.Request{Kind: core.Get, Key: key}, maxKeys)
}

func (r *Router) fanOut(ctx context.Context, req core.Request, maxKeys int) ([]core.Reply, error) {
	handles := r.dir.All()
	if len(handles) == 0 {
		return nil, &api.ErrNotFound{}
	}

	results := make([]core.Reply, len(handles))
	found := make([]bool, len(handles))

	g, _ := errgroup.WithContext(ctx)
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			reply, err := h.Do(req)
			if err != nil {
				return nil // per-handle error -> treated as empty, dropped
			}
			results[i] = reply
			found[i] = true
			return nil
		})
	}
	// errgroup.Go never returns a non-nil error from the closures above, so
	// Wait cannot fail; it only serves as the join point here.
	_ = g.Wait()

	out := make([]core.Reply, 0, len(handles))
	for i, ok := range found {
		if ok {
			out = append(out, results[i])
		}
	}
	if len(out) == 0 {
		return nil, &api.ErrNotFound{}
	}
	if maxKeys > 0 && len(out) > maxKeys {
		out = out[:maxKeys]
	}
	return out, nil
}

// Stats fans GetStats out across every handle in Directory order (spec.md
// §4.B: "stats() fans out get_stats across all handles and returns the
// list"). Per-handle errors are dropped, same as fanOut.
func (r *Router) Stats(ctx context.Context) ([]core.StatsBag, error) {
	handles := r.dir.All()
	if len(handles) == 0 {
		return nil, &api.ErrProcessNotFound{}
	}

	results := make([]core.StatsBag, len(handles))
	found := make([]bool, len(handles))

	g, _ := errgroup.WithContext(ctx)
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			bag, err := h.GetStats()
			if err != nil {
				return nil
			}
			results[i] = bag
			found[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]core.StatsBag, 0, len(handles))
	for i, ok := range found {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, nil
}
