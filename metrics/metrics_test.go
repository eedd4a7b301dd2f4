package metrics

import (
	"testing"

	"github.com/NVIDIA/aiscompact/core"
	"github.com/NVIDIA/aiscompact/ctlr"
)

func gaugeValue(t *testing.T, e *Exporter, name string) float64 {
	t.Helper()
	mfs, err := e.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "aiscompact_"+name {
			continue
		}
		return mf.GetMetric()[0].GetGauge().GetValue()
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

func TestOnStatsUpdateSetsGauges(t *testing.T) {
	e := New()
	e.OnStatsUpdate(ctlr.CompactionStats{
		Status:       ctlr.Running.String(),
		TotalTargets: 3,
		NOngoing:     2,
		NPending:     1,
		Locked:       []core.ContainerID{"c1"},
	})

	if got := gaugeValue(t, e, "ongoing"); got != 2 {
		t.Fatalf("ongoing = %v, want 2", got)
	}
	if got := gaugeValue(t, e, "pending"); got != 1 {
		t.Fatalf("pending = %v, want 1", got)
	}
	if got := gaugeValue(t, e, "locked"); got != 1 {
		t.Fatalf("locked = %v, want 1", got)
	}
	if got := gaugeValue(t, e, "total_targets"); got != 3 {
		t.Fatalf("total_targets = %v, want 3", got)
	}
}

func TestOnStatsUpdateIdleZeroesOngoing(t *testing.T) {
	e := New()
	e.OnStatsUpdate(ctlr.CompactionStats{Status: ctlr.Idling.String()})

	if got := gaugeValue(t, e, "ongoing"); got != 0 {
		t.Fatalf("ongoing = %v, want 0", got)
	}
}
