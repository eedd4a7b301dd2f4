package worker

import (
	"testing"
	"time"

	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/core"
)

type recordingRunner struct {
	finishes chan api.CompactionReport
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{finishes: make(chan api.CompactionReport, 1)}
}

func (r *recordingRunner) Finish(cid core.ContainerID, report any) {
	r.finishes <- report.(api.CompactionReport)
}
func (*recordingRunner) Lock(core.ContainerID) {}

func TestHandleDoEchoesPayload(t *testing.T) {
	h := NewHandle("c1")
	reply, err := h.Do(core.Request{Kind: core.Put, Payload: []byte("hello")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(reply.Payload) != "hello" {
		t.Fatalf("got %q, want %q", reply.Payload, "hello")
	}
}

func TestCompactionWorkerRunDeliversFinish(t *testing.T) {
	h := NewHandle("c1")
	cw, err := h.GetCompactionWorker()
	if err != nil {
		t.Fatalf("GetCompactionWorker: %v", err)
	}
	runner := newRecordingRunner()

	if err := cw.Run("c1", runner, false, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case report := <-runner.finishes:
		if report.Container != "c1" {
			t.Fatalf("report.Container = %q, want c1", report.Container)
		}
		if report.ObjsReclaimed == 0 {
			t.Fatalf("expected non-zero ObjsReclaimed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Finish")
	}
}

func TestCompactionWorkerSuspendDelaysFinish(t *testing.T) {
	h := NewHandle("c1")
	cw, _ := h.GetCompactionWorker()
	runner := newRecordingRunner()

	if err := cw.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := cw.Run("c1", runner, false, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case <-runner.finishes:
		t.Fatal("Finish delivered while suspended")
	case <-time.After(Tick * Steps):
	}

	if err := cw.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	select {
	case <-runner.finishes:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Finish after Resume")
	}
}
