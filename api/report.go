// Package api defines the wire-level types exchanged across the
// compaction control plane's external boundary: per-container reports and
// the error tokens the Router and Controller surface to callers.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package api

import (
	"time"

	"github.com/NVIDIA/aiscompact/core"
)

// CompactionReport is the per-container outcome of a compaction or
// diagnosis pass. It is opaque to the Controller (which treats arrival of
// a report as successful completion regardless of content, per spec.md
// §7) except for its ordering, which the Controller relies on to sort the
// `reports` accumulator once per run.
type CompactionReport struct {
	Container    core.ContainerID `json:"container"`
	Diagnosing   bool             `json:"diagnosing"`
	StartTime    time.Time        `json:"start_time"`
	Duration     time.Duration    `json:"duration"`
	BytesBefore  int64            `json:"bytes_before"`
	BytesAfter   int64            `json:"bytes_after"`
	ObjsVisited  int64            `json:"objs_visited"`
	ObjsReclaimed int64           `json:"objs_reclaimed"`
	// WorkerErr, if set, records a failure the worker itself observed
	// while compacting; it does not make the report an error to the
	// Controller — see spec.md §7 "Worker failure".
	WorkerErr string `json:"worker_err,omitempty"`
}

// Reports is sortable by container id, then start time, matching the
// Controller's "reports := sort(report :: reports)" step at run completion.
type Reports []CompactionReport

func (r Reports) Len() int      { return len(r) }
func (r Reports) Swap(i, j int) { r[i], r[j] = r[j], r[i] }
func (r Reports) Less(i, j int) bool {
	if r[i].Container != r[j].Container {
		return r[i].Container < r[j].Container
	}
	return r[i].StartTime.Before(r[j].StartTime)
}
