// Package worker provides a minimal, goroutine-backed WorkerHandle and
// CompactionWorkerHandle (spec.md §6, core.WorkerHandle/CompactionWorkerHandle)
// used by tests and by cmd/compactctl's default wiring. The
// real object-server integration these interfaces abstract over is out of
// scope (spec.md §1 Non-goals); this package exists purely so the rest of
// the module has something concrete to Discover, dispatch to, and test
// against.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package worker

import (
	"sync"
	"time"

	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/cmn/atomic"
	"github.com/NVIDIA/aiscompact/core"
)

// Handle is a no-op object-server stand-in: Do echoes the request payload
// back, GetStats reports the container id and per-kind request counters,
// and GetCompactionWorker hands out a
// CompactionWorker bound to the same container.
type Handle struct {
	id core.ContainerID

	mu      sync.Mutex
	cw      *CompactionWorker
	nputs   atomic.Int64
	ngets   atomic.Int64
	ndels   atomic.Int64
}

func NewHandle(id core.ContainerID) *Handle {
	return &Handle{id: id}
}

func (h *Handle) ID() core.ContainerID { return h.id }

func (h *Handle) Do(req core.Request) (core.Reply, error) {
	switch req.Kind {
	case core.Put, core.Store:
		h.nputs.Add(1)
	case core.Get, core.Head, core.HeadWithMD5:
		h.ngets.Add(1)
	case core.Delete:
		h.ndels.Add(1)
	}
	return core.Reply{Payload: req.Payload}, nil
}

func (h *Handle) GetStats() (core.StatsBag, error) {
	return core.StatsBag{
		"container":  string(h.id),
		"puts":       h.nputs.Load(),
		"gets":       h.ngets.Load(),
		"deletes":    h.ndels.Load(),
	}, nil
}

func (h *Handle) GetCompactionWorker() (core.CompactionWorkerHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cw == nil {
		h.cw = &CompactionWorker{id: h.id}
	}
	return h.cw, nil
}

// CompactionWorker simulates a compaction pass as a single background
// goroutine per run, honoring Suspend/Resume via a pausable gate and
// delivering completion through the RunnerRef handed to Run (spec.md §6,
// §4.C).
type CompactionWorker struct {
	id core.ContainerID

	mu      sync.Mutex
	paused  bool
	resumeC chan struct{}
}

// Tick is how long a simulated compaction pass takes per unit of
// "progress"; small enough that tests complete quickly, large enough that
// Suspend can interrupt an in-flight run deterministically.
const Tick = 5 * time.Millisecond

// Steps is the number of Tick-sized units a simulated compaction pass
// takes to complete.
const Steps = 4

func (w *CompactionWorker) Run(cid core.ContainerID, runner core.RunnerRef, diagnosing bool, callback func(any)) error {
	go w.run(cid, runner, diagnosing, callback)
	return nil
}

func (w *CompactionWorker) run(cid core.ContainerID, runner core.RunnerRef, diagnosing bool, callback func(any)) {
	start := time.Now()
	var bytesBefore, bytesAfter int64 = 1 << 20, 1 << 19
	var objsVisited, objsReclaimed int64

	for i := 0; i < Steps; i++ {
		w.waitIfPaused()
		time.Sleep(Tick)
		objsVisited += 100
		objsReclaimed += 40
	}

	report := api.CompactionReport{
		Container:     cid,
		Diagnosing:    diagnosing,
		StartTime:     start,
		Duration:      time.Since(start),
		BytesBefore:   bytesBefore,
		BytesAfter:    bytesAfter,
		ObjsVisited:   objsVisited,
		ObjsReclaimed: objsReclaimed,
	}
	if callback != nil {
		callback(report)
	}
	runner.Finish(cid, report)
}

func (w *CompactionWorker) waitIfPaused() {
	for {
		w.mu.Lock()
		paused := w.paused
		resumeC := w.resumeC
		w.mu.Unlock()
		if !paused {
			return
		}
		<-resumeC
	}
}

func (w *CompactionWorker) Suspend() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
	w.resumeC = make(chan struct{})
	return nil
}

func (w *CompactionWorker) Resume() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.paused {
		w.paused = false
		close(w.resumeC)
	}
	return nil
}

var (
	_ core.WorkerHandle           = (*Handle)(nil)
	_ core.CompactionWorkerHandle = (*CompactionWorker)(nil)
)
