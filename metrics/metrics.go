// Package metrics exposes the Controller's live state as Prometheus
// gauges/counters (SPEC_FULL.md component H), grounded on the teacher's
// client_golang usage pattern of registering a handful of named
// collectors at startup and updating them from a single call site rather
// than scattering Inc/Set calls through business logic.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/NVIDIA/aiscompact/ctlr"
)

const namespace = "aiscompact"

// Exporter owns the registered collectors and exposes OnStatsUpdate,
// which a ctlr.Options caller wires in directly so every FSM transition
// republishes the gauges without a polling loop.
type Exporter struct {
	reg *prometheus.Registry

	ongoing      prometheus.Gauge
	pending      prometheus.Gauge
	reserved     prometheus.Gauge
	locked       prometheus.Gauge
	totalTargets prometheus.Gauge
	status       *prometheus.GaugeVec
	reportsTotal prometheus.Counter

	lastSeenReports int
}

func New() *Exporter {
	e := &Exporter{
		reg: prometheus.NewRegistry(),
		ongoing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ongoing", Help: "containers currently undergoing compaction",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pending", Help: "containers queued for compaction in the current run",
		}),
		reserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "reserved", Help: "containers excluded from the current run, carried to the next",
		}),
		locked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "locked", Help: "containers flagged by an out-of-band lock event",
		}),
		totalTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "total_targets", Help: "size of the target set for the current run",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "status", Help: "1 for the controller's current FSM state, 0 otherwise",
		}, []string{"state"}),
		reportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reports_total", Help: "completed per-container compaction reports observed",
		}),
	}
	e.reg.MustRegister(e.ongoing, e.pending, e.reserved, e.locked, e.totalTargets, e.status, e.reportsTotal)
	return e
}

// Registry exposes the underlying prometheus.Registry for an HTTP
// /metrics handler (promhttp.HandlerFor) to serve.
func (e *Exporter) Registry() *prometheus.Registry { return e.reg }

// OnStatsUpdate is a ctlr.Options.OnStatsUpdate implementation: set it
// directly when constructing the Controller.
func (e *Exporter) OnStatsUpdate(stats ctlr.CompactionStats) {
	e.ongoing.Set(float64(stats.NOngoing))
	e.pending.Set(float64(stats.NPending))
	e.reserved.Set(float64(stats.NReserved))
	e.locked.Set(float64(len(stats.Locked)))
	e.totalTargets.Set(float64(stats.TotalTargets))

	seenTotal := len(stats.Reports)
	if seenTotal < e.lastSeenReports {
		// a new run cleared the Controller's report accumulator
		e.lastSeenReports = 0
	}
	if seenTotal > e.lastSeenReports {
		e.reportsTotal.Add(float64(seenTotal - e.lastSeenReports))
	}
	e.lastSeenReports = seenTotal

	for _, s := range []ctlr.Status{ctlr.Idling, ctlr.Running, ctlr.Suspending} {
		v := 0.0
		if s.String() == stats.Status {
			v = 1
		}
		e.status.WithLabelValues(s.String()).Set(v)
	}
}
