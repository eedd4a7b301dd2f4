package ctlr

import "github.com/NVIDIA/aiscompact/core"

type eventKind int

const (
	evRun eventKind = iota
	evSuspend
	evResume
	evStop
	evState
	evLock
	evFinish
)

func (k eventKind) String() string {
	switch k {
	case evRun:
		return "Run"
	case evSuspend:
		return "Suspend"
	case evResume:
		return "Resume"
	case evStop:
		return "Stop"
	case evState:
		return "State"
	case evLock:
		return "Lock"
	case evFinish:
		return "Finish"
	default:
		return "?"
	}
}

// event is the tagged variant the event loop dispatches on. Sync events
// (Run/Suspend/Resume/Stop/State) carry a non-nil reply channel; async
// events (Lock/Finish) do not.
type event struct {
	kind  eventKind
	reply chan reply

	// Run payload
	targets        []core.ContainerID
	allTargets     bool
	maxConcurrency int
	diagnosing     bool
	callback       func(any)

	// Stop payload (accepted, ignored — spec.md §9)
	stopID string

	// Lock payload
	lockID core.ContainerID

	// Finish payload
	runnerID  string
	finishCID core.ContainerID
	report    any
}

type reply struct {
	stats CompactionStats
	err   error
}
