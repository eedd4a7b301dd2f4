package ctlr

import (
	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/cmn/nlog"
	"github.com/NVIDIA/aiscompact/core"
)

type runnerMsgKind int

const (
	rmRun runnerMsgKind = iota
	rmLock
	rmSuspend
	rmResume
	rmFinish
	rmStop
)

type runnerMsg struct {
	kind       runnerMsgKind
	cid        core.ContainerID
	diagnosing bool
	report     any
}

// Message is the tagged, generically-addressable form of the six inbound
// messages a Job Runner accepts (spec.md §4.C). The Controller uses the
// typed helpers below (run/suspend/resume/stop) on its own hot path;
// Message/Send exist so a Runner can be addressed the way the spec
// describes it — as an actor accepting a dynamically-tagged message — and
// so "anything else" has somewhere concrete to resolve to UnknownMessage.
type Message struct {
	Kind       string // "run" | "lock" | "suspend" | "resume" | "finish" | "stop"
	CID        core.ContainerID
	Diagnosing bool
	Report     any
}

type assignment struct {
	cid core.ContainerID
	cw  core.CompactionWorkerHandle
}

// Runner is a Job Runner (spec.md §4.C): a long-lived task owning at most
// one in-flight compaction job, relaying control signals to its assigned
// worker and reporting completion back to the Controller.
type Runner struct {
	id         string
	ctrl       *Controller
	callback   func(any)
	mailbox    chan runnerMsg
	stopped    chan struct{}
	assignment *assignment
	// busy is true from a successful {run} until this runner's {finish} has
	// been reported to the Controller. assignment itself is never cleared
	// to nil while the Runner is alive (spec.md §4.C: "keep assignment
	// until Controller reassigns or stops"), so busy — not assignment — is
	// what a new {run} must check: a {run} while busy is the "assignment
	// is None" precondition failing; a {run} once idle is the legitimate
	// reassignment the Controller performs out of its Finish handler.
	busy bool
}

func newRunner(id string, ctrl *Controller, callback func(any)) *Runner {
	r := &Runner{
		id:       id,
		ctrl:     ctrl,
		callback: callback,
		mailbox:  make(chan runnerMsg, 4),
		stopped:  make(chan struct{}),
	}
	go r.loop()
	return r
}

// ID returns the Runner's id: the key of its entry in the Controller's
// runner map, carried on every Finish so the Controller can find the entry.
func (r *Runner) ID() string { return r.id }

func (r *Runner) loop() {
	defer close(r.stopped)
	for msg := range r.mailbox {
		switch msg.kind {
		case rmRun:
			r.handleRun(msg)
		case rmLock:
			r.ctrl.Lock(msg.cid)
		case rmSuspend:
			if r.assignment != nil {
				if err := r.assignment.cw.Suspend(); err != nil {
					nlog.Warningf("runner %s: suspend %s: %v", r.id, msg.cid, err)
				}
			}
		case rmResume:
			if r.assignment != nil {
				if err := r.assignment.cw.Resume(); err != nil {
					nlog.Warningf("runner %s: resume %s: %v", r.id, msg.cid, err)
				}
			}
		case rmFinish:
			if r.assignment == nil {
				continue // precondition violated; nothing assigned, drop defensively
			}
			cid := r.assignment.cid
			r.busy = false
			r.ctrl.Finish(r.id, cid, msg.report)
			// assignment is kept until the Controller reassigns (rmRun)
			// or stops (rmStop) this runner, per spec.md §4.C.
		case rmStop:
			return
		}
	}
}

func (r *Runner) handleRun(msg runnerMsg) {
	if r.busy {
		nlog.Warningf("runner %s: received run(%s) while owning %s; ignoring", r.id, msg.cid, r.assignment.cid)
		return
	}
	h, ok := r.ctrl.dir.Get(msg.cid)
	if !ok {
		nlog.Errorf("runner %s: unknown container %s", r.id, msg.cid)
		return
	}
	cw, err := h.GetCompactionWorker()
	if err != nil {
		nlog.Errorf("runner %s: get compaction worker for %s: %v", r.id, msg.cid, err)
		return
	}
	if err := cw.Run(msg.cid, r, msg.diagnosing, r.callback); err != nil {
		nlog.Errorf("runner %s: run %s: %v", r.id, msg.cid, err)
		return
	}
	// Reassignment (the Controller dispatching a new target to a runner
	// that already finished one) overwrites assignment unconditionally;
	// busy, not assignment == nil, is what gates a concurrent/premature run.
	r.assignment = &assignment{cid: msg.cid, cw: cw}
	r.busy = true
}

//
// core.RunnerRef — invoked by the Worker's own goroutine
//

func (r *Runner) Finish(cid core.ContainerID, report any) {
	r.mailbox <- runnerMsg{kind: rmFinish, cid: cid, report: report}
}

func (r *Runner) Lock(cid core.ContainerID) {
	r.mailbox <- runnerMsg{kind: rmLock, cid: cid}
}

//
// Controller-originated control (typed hot path)
//

func (r *Runner) run(cid core.ContainerID, diagnosing bool) {
	r.mailbox <- runnerMsg{kind: rmRun, cid: cid, diagnosing: diagnosing}
}
func (r *Runner) suspend() { r.mailbox <- runnerMsg{kind: rmSuspend} }
func (r *Runner) resume()  { r.mailbox <- runnerMsg{kind: rmResume} }
func (r *Runner) stop()    { r.mailbox <- runnerMsg{kind: rmStop} }

// Send addresses the Runner with a tagged Message, the generic form of the
// contract table in spec.md §4.C. Unrecognized Kinds return
// *api.ErrUnknownMessage and the Runner keeps waiting — it does not crash
// (spec.md §7).
func (r *Runner) Send(m Message) error {
	switch m.Kind {
	case "run":
		r.run(m.CID, m.Diagnosing)
	case "lock":
		r.mailbox <- runnerMsg{kind: rmLock, cid: m.CID}
	case "suspend":
		r.suspend()
	case "resume":
		r.resume()
	case "finish":
		r.mailbox <- runnerMsg{kind: rmFinish, cid: m.CID, report: m.Report}
	case "stop":
		r.stop()
	default:
		return &api.ErrUnknownMessage{Msg: m}
	}
	return nil
}
