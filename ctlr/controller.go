// Package ctlr implements the Controller FSM and Job Runner that form the
// compaction control plane's core (spec.md §4.C, §4.D): admission of run
// requests, the concurrency cap, dispatch/accounting across Job Runners,
// and suspend/resume/lock signal handling.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package ctlr

import (
	"sort"
	"strconv"
	"time"

	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/cmn/cos"
	"github.com/NVIDIA/aiscompact/core"
	"github.com/teris-io/shortid"
)

// interface guard
var _ core.RunnerRef = (*Runner)(nil)

type runnerEntry struct {
	runner *Runner
	hasJob bool
	cid    core.ContainerID
}

// Options configures a Controller at construction. All fields are
// optional; zero values fall back to spec.md defaults.
type Options struct {
	// SyncTimeout bounds Run/Suspend/Resume/Stop/State (spec.md §5).
	SyncTimeout time.Duration
	// OnStatsUpdate, if set, is invoked with a fresh snapshot after every
	// state-changing transition (ambient: feeds the Prometheus exporter).
	OnStatsUpdate func(CompactionStats)
	// OnRunComplete, if set, is invoked with the final sorted report list
	// when a run reaches Idling (ambient: feeds the report-log audit
	// trail). Never consulted by the FSM itself.
	OnRunComplete func(api.Reports)
	// Fatal handles the Finish-while-Idling protocol violation (spec.md
	// §7). Defaults to cos.ExitLogf (process exit). Tests override it to
	// observe the violation without killing the test binary; the FSM
	// still stops afterward either way.
	Fatal func(format string, args ...any)
}

// Controller is the process-wide compaction-controller singleton (spec.md
// §3, §9: "globally-addressable singleton... model as an actor/task
// addressed through a process-wide handle"). All mutable FSM state is
// confined to the single event-loop goroutine started by Start; external
// callers only ever interact with it through the synchronous/asynchronous
// API below.
type Controller struct {
	dir *core.Directory
	sid *shortid.Shortid

	events chan event
	done   chan struct{}

	syncTimeout   time.Duration
	onStatsUpdate func(CompactionStats)
	onRunComplete func(api.Reports)
	fatal         func(string, ...any)

	// FSM state — touched only by the event-loop goroutine.
	status        Status
	totalTargets  int
	reserved      []core.ContainerID
	reservedSet   map[core.ContainerID]struct{}
	pending       []core.ContainerID
	pendingSet    map[core.ContainerID]struct{}
	ongoing       map[core.ContainerID]struct{}
	locked        map[core.ContainerID]struct{}
	runners       map[string]*runnerEntry
	maxConcurrent int
	isDiagnosing  bool
	callback      func(any)
	startTime     time.Time
	reports       api.Reports
}

// New creates a Controller bootstrapped into Idling with pending = every
// container currently known to dir (spec.md §3 Lifecycle). Call Start to
// launch its event loop before using the API.
func New(dir *core.Directory, opts Options) *Controller {
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 3 * time.Second
	}
	if opts.Fatal == nil {
		opts.Fatal = cos.ExitLogf
	}
	all := dir.AllIDs()
	sid, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		sid = nil // degrade to a counter-based id scheme below
	}
	c := &Controller{
		dir:           dir,
		sid:           sid,
		events:        make(chan event, 16),
		done:          make(chan struct{}),
		syncTimeout:   opts.SyncTimeout,
		onStatsUpdate: opts.OnStatsUpdate,
		onRunComplete: opts.OnRunComplete,
		fatal:         opts.Fatal,
		status:        Idling,
		totalTargets:  len(all),
		pending:       all,
		pendingSet:    toSet(all),
		reservedSet:   map[core.ContainerID]struct{}{},
		ongoing:       map[core.ContainerID]struct{}{},
		locked:        map[core.ContainerID]struct{}{},
		runners:       map[string]*runnerEntry{},
	}
	return c
}

// Start launches the Controller's single-goroutine event loop.
func (c *Controller) Start() { go c.loop() }

func (c *Controller) loop() {
	defer close(c.done)
	for ev := range c.events {
		if !c.handle(ev) {
			return
		}
	}
}

func (c *Controller) handle(ev event) bool {
	switch ev.kind {
	case evRun:
		c.onRun(ev)
	case evSuspend:
		c.onSuspend(ev)
	case evResume:
		c.onResume(ev)
	case evStop:
		c.replyOK(ev)
		return false
	case evState:
		c.replyOK(ev)
	case evLock:
		c.onLock(ev)
	case evFinish:
		if c.status == Idling {
			c.fatal("protocol violation: Finish received while Idling (runner=%s cid=%s)", ev.runnerID, ev.finishCID)
			return false
		}
		if c.status == Running {
			c.onFinishRunning(ev)
		} else {
			c.onFinishSuspending(ev)
		}
	}
	if c.onStatsUpdate != nil {
		c.onStatsUpdate(c.snapshot())
	}
	return true
}

//
// synchronous API
//

// Run dispatches targets (nil or empty both mean "this exact set" — use
// RunAll for "every container"). max <= 0 is normalized to 1.
func (c *Controller) Run(targets []core.ContainerID, maxConcurrency int, callback func(any)) (CompactionStats, error) {
	return c.sync(event{kind: evRun, targets: targets, maxConcurrency: maxConcurrency, callback: callback})
}

// RunAll is run() = run(1, nil) generalized to an arbitrary concurrency
// cap: every known container, read fresh from the Directory at dispatch
// time (spec.md §6).
func (c *Controller) RunAll(maxConcurrency int, callback func(any)) (CompactionStats, error) {
	return c.sync(event{kind: evRun, allTargets: true, maxConcurrency: maxConcurrency, callback: callback})
}

// Diagnose is run(all, 1, nil) with is_diagnosing = true (spec.md §6).
func (c *Controller) Diagnose() (CompactionStats, error) {
	return c.sync(event{kind: evRun, allTargets: true, maxConcurrency: 1, diagnosing: true})
}

func (c *Controller) Suspend() (CompactionStats, error) { return c.sync(event{kind: evSuspend}) }
func (c *Controller) Resume() (CompactionStats, error)  { return c.sync(event{kind: evResume}) }

// Stop accepts an id for call-signature compatibility and ignores it
// (spec.md §9 Open Question 2): it always shuts down the whole Controller.
func (c *Controller) Stop(id string) (CompactionStats, error) {
	return c.sync(event{kind: evStop, stopID: id})
}

func (c *Controller) State() (CompactionStats, error) { return c.sync(event{kind: evState}) }

func (c *Controller) sync(ev event) (CompactionStats, error) {
	ev.reply = make(chan reply, 1)
	select {
	case c.events <- ev:
	case <-c.done:
		return CompactionStats{}, &api.ErrBadState{State: "Stopped", Event: ev.kind.String()}
	}
	select {
	case r := <-ev.reply:
		return r.stats, r.err
	case <-time.After(c.syncTimeout):
		return CompactionStats{}, &api.ErrTimeout{Event: ev.kind.String()}
	}
}

//
// asynchronous API
//

// Lock records an out-of-band lock event for id (spec.md §4.D). Informational
// only; does not affect dispatch.
func (c *Controller) Lock(id core.ContainerID) {
	select {
	case c.events <- event{kind: evLock, lockID: id}:
	case <-c.done:
	}
}

// Finish is how a Job Runner reports {finish, report} to the Controller
// (spec.md §4.C).
func (c *Controller) Finish(runnerID string, cid core.ContainerID, report any) {
	select {
	case c.events <- event{kind: evFinish, runnerID: runnerID, finishCID: cid, report: report}:
	case <-c.done:
	}
}

//
// transition handlers
//

func (c *Controller) onRun(ev event) {
	if c.status != Idling {
		c.replyErr(ev, &api.ErrBadState{State: c.status.String(), Event: "Run"})
		return
	}

	all := c.dir.AllIDs() // re-read at Run time (spec.md §9 Directory mutability)
	oldPending := c.pending

	var targets []core.ContainerID
	if ev.allTargets {
		targets = all
	} else {
		targets = append([]core.ContainerID(nil), ev.targets...)
	}

	reserved := computeReserved(all, oldPending, targets, ev.allTargets)

	maxConcurrency := ev.maxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	c.reserved = reserved
	c.reservedSet = toSet(reserved)
	c.pending = targets
	c.pendingSet = toSet(targets)
	c.ongoing = map[core.ContainerID]struct{}{}
	c.locked = map[core.ContainerID]struct{}{}
	c.runners = map[string]*runnerEntry{}
	c.reports = nil
	c.maxConcurrent = maxConcurrency
	c.isDiagnosing = ev.diagnosing
	c.callback = ev.callback
	c.startTime = time.Now()
	c.totalTargets = len(all)
	c.status = Running

	c.startJobsAsPossible()
	c.replyOK(ev)
}

// computeReserved implements spec.md §4.D's Run action:
//
//	reserved := all ⧵ targets (or pending ⧵ targets if pending non-empty;
//	empty if targets = all)
func computeReserved(all, oldPending, targets []core.ContainerID, allTargets bool) []core.ContainerID {
	if allTargets {
		return nil
	}
	targetSet := toSet(targets)
	base := all
	if len(oldPending) > 0 {
		base = oldPending
	}
	out := make([]core.ContainerID, 0, len(base))
	for _, id := range base {
		if _, in := targetSet[id]; !in {
			out = append(out, id)
		}
	}
	return out
}

// startJobsAsPossible dispatches min(max_concurrent, |pending|) Runners at
// Running entry (spec.md §4.D Concurrency cap). If there is nothing to
// dispatch at all, the run completes immediately and the Controller
// returns to Idling (spec.md §8 boundary behavior).
func (c *Controller) startJobsAsPossible() {
	n := c.maxConcurrent
	if n > len(c.pending) {
		n = len(c.pending)
	}
	for i := 0; i < n; i++ {
		c.spawnAndDispatch()
	}
	if len(c.pending) == 0 && len(c.ongoing) == 0 {
		c.toIdle()
	}
}

func (c *Controller) spawnAndDispatch() {
	cid := c.popPending()
	id := c.newRunnerID()
	r := newRunner(id, c, c.callback)
	c.runners[id] = &runnerEntry{runner: r, hasJob: true, cid: cid}
	c.ongoing[cid] = struct{}{}
	r.run(cid, c.isDiagnosing)
}

func (c *Controller) popPending() core.ContainerID {
	cid := c.pending[0]
	c.pending = c.pending[1:]
	delete(c.pendingSet, cid)
	return cid
}

func (c *Controller) onSuspend(ev event) {
	if c.status != Running {
		c.replyErr(ev, &api.ErrBadState{State: c.status.String(), Event: "Suspend"})
		return
	}
	for _, re := range c.runners {
		re.runner.suspend()
	}
	c.status = Suspending
	c.replyOK(ev)
}

// onResume implements the Resume/dispatch algorithm (spec.md §4.D) for
// both Suspending→Running guard rows: it iterates every runner once,
// resuming busy ones, and either redispatching or stopping idle ones.
func (c *Controller) onResume(ev event) {
	if c.status != Suspending {
		c.replyErr(ev, &api.ErrBadState{State: c.status.String(), Event: "Resume"})
		return
	}
	for id, re := range c.runners {
		if re.hasJob {
			re.runner.resume()
			continue
		}
		if len(c.pending) == 0 {
			re.runner.stop()
			delete(c.runners, id)
			continue
		}
		cid := c.popPending()
		re.runner.run(cid, c.isDiagnosing)
		c.ongoing[cid] = struct{}{}
		re.hasJob = true
		re.cid = cid
	}
	c.status = Running
	c.replyOK(ev)
}

func (c *Controller) onLock(ev event) {
	if c.status != Running {
		return // informational signal; only defined for Running (spec.md §4.D)
	}
	c.locked[ev.lockID] = struct{}{}
}

func (c *Controller) onFinishRunning(ev event) {
	re, ok := c.runners[ev.runnerID]
	if !ok {
		return // defensive: stale/unknown runner id
	}
	if len(c.pending) > 0 {
		c.appendReport(ev.report)
		n := c.popPending()
		delete(c.ongoing, ev.finishCID)
		c.ongoing[n] = struct{}{}
		re.runner.run(n, c.isDiagnosing)
		re.cid = n
		return
	}
	if len(c.ongoing) >= 2 {
		c.appendReport(ev.report)
		re.runner.stop()
		delete(c.ongoing, ev.finishCID)
		delete(c.runners, ev.runnerID)
		return
	}
	// pending empty, this runner's container is the last one ongoing.
	c.appendReport(ev.report)
	for _, r2 := range c.runners {
		r2.runner.stop()
	}
	sort.Sort(c.reports)
	if c.onRunComplete != nil {
		c.onRunComplete(append(api.Reports(nil), c.reports...))
	}
	c.toIdle()
}

func (c *Controller) onFinishSuspending(ev event) {
	re, ok := c.runners[ev.runnerID]
	if !ok {
		return
	}
	if len(c.pending) > 0 {
		delete(c.ongoing, ev.finishCID)
		re.hasJob = false
		re.cid = ""
		return
	}
	if len(c.ongoing) >= 2 {
		re.runner.stop()
		delete(c.ongoing, ev.finishCID)
		delete(c.runners, ev.runnerID)
		return
	}
	for _, r2 := range c.runners {
		r2.runner.stop()
	}
	// spec.md §4.D: "reset as in the Running->Idling case (but without
	// appending a final report)" — i.e. reports := sort(reports), no
	// report prepended, but still sorted and still handed to
	// onRunComplete like any other run completion.
	sort.Sort(c.reports)
	if c.onRunComplete != nil {
		c.onRunComplete(append(api.Reports(nil), c.reports...))
	}
	c.toIdle()
}

// toIdle resets the Controller to Idling, computing the next run's
// pending set via pendingTargets (spec.md §4.D).
func (c *Controller) toIdle() {
	c.pending = pendingTargets(c.reserved, c.dir)
	c.pendingSet = toSet(c.pending)
	c.reserved = nil
	c.reservedSet = map[core.ContainerID]struct{}{}
	c.locked = map[core.ContainerID]struct{}{}
	c.ongoing = map[core.ContainerID]struct{}{}
	c.runners = map[string]*runnerEntry{}
	c.status = Idling
}

// pendingTargets implements spec.md §4.D: if reserved is empty, return the
// current Directory snapshot; otherwise return reserved.
func pendingTargets(reserved []core.ContainerID, dir *core.Directory) []core.ContainerID {
	if len(reserved) == 0 {
		return dir.AllIDs()
	}
	return append([]core.ContainerID(nil), reserved...)
}

func (c *Controller) appendReport(report any) {
	if r, ok := report.(api.CompactionReport); ok {
		c.reports = append(c.reports, r)
	}
}

func (c *Controller) replyOK(ev event) {
	if ev.reply != nil {
		ev.reply <- reply{stats: c.snapshot()}
	}
}

func (c *Controller) replyErr(ev event, err error) {
	if ev.reply != nil {
		ev.reply <- reply{stats: c.snapshot(), err: err}
	}
}

var runnerSeq int

// newRunnerID mints a short, sortable runner id via teris-io/shortid (the
// same library cmn/cos.GenUUID wraps in the teacher), falling back to a
// sequence counter if the generator failed to initialize.
func (c *Controller) newRunnerID() string {
	if c.sid != nil {
		if id, err := c.sid.Generate(); err == nil {
			return id
		}
	}
	runnerSeq++
	return "runner-" + strconv.Itoa(runnerSeq)
}

func toSet(ids []core.ContainerID) map[core.ContainerID]struct{} {
	m := make(map[core.ContainerID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
