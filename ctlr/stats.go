package ctlr

import (
	"time"

	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/core"
)

// Status is the Controller's FSM state (spec.md §3).
type Status int

const (
	Idling Status = iota
	Running
	Suspending
)

func (s Status) String() string {
	switch s {
	case Idling:
		return "Idling"
	case Running:
		return "Running"
	case Suspending:
		return "Suspending"
	default:
		return "?"
	}
}

// CompactionStats is the read-only snapshot returned by State (spec.md
// §3, §4.E): every field is a pure function of Controller state at the
// moment of service, never a live view.
type CompactionStats struct {
	Status       string              `json:"status"`
	TotalTargets int                 `json:"total_targets"`
	NReserved    int                 `json:"n_reserved"`
	NPending     int                 `json:"n_pending"`
	NOngoing     int                 `json:"n_ongoing"`
	Reserved     []core.ContainerID  `json:"reserved"`
	Pending      []core.ContainerID  `json:"pending"`
	Ongoing      []core.ContainerID  `json:"ongoing"`
	Locked       []core.ContainerID  `json:"locked"`
	StartTime    time.Time           `json:"start_time"`
	Reports      api.Reports         `json:"reports"`
}

// snapshot builds a CompactionStats copy of the current state. Must be
// called from the event-loop goroutine (i.e. from within handle()).
func (c *Controller) snapshot() CompactionStats {
	ongoing := make([]core.ContainerID, 0, len(c.ongoing))
	for id := range c.ongoing {
		ongoing = append(ongoing, id)
	}
	locked := make([]core.ContainerID, 0, len(c.locked))
	for id := range c.locked {
		locked = append(locked, id)
	}
	reports := make(api.Reports, len(c.reports))
	copy(reports, c.reports)

	return CompactionStats{
		Status:       c.status.String(),
		TotalTargets: c.totalTargets,
		NReserved:    len(c.reserved),
		NPending:     len(c.pending),
		NOngoing:     len(c.ongoing),
		Reserved:     append([]core.ContainerID(nil), c.reserved...),
		Pending:      append([]core.ContainerID(nil), c.pending...),
		Ongoing:      ongoing,
		Locked:       locked,
		StartTime:    c.startTime,
		Reports:      reports,
	}
}
