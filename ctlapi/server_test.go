package ctlapi

import (
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/NVIDIA/aiscompact/core"
	"github.com/NVIDIA/aiscompact/ctlr"
	"github.com/NVIDIA/aiscompact/worker"
)

func newTestServer(t *testing.T) (*Server, *ctlr.Controller) {
	t.Helper()
	h1 := worker.NewHandle("c1")
	dir := core.NewDirectory([]core.WorkerHandle{h1})
	ctrl := ctlr.New(dir, ctlr.Options{})
	ctrl.Start()
	return New(ctrl, ""), ctrl
}

func newCtx(method, path string, body []byte) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestHandleStateUnauthenticated(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := newCtx("GET", "/v1/compact/state", nil)
	s.Handler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
}

func TestHandleRunThenState(t *testing.T) {
	s, _ := newTestServer(t)

	runCtx := newCtx("POST", "/v1/compact/run", []byte(`{"all":true,"max_concurrency":1}`))
	s.Handler(runCtx)
	if runCtx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("run status = %d, body=%s", runCtx.Response.StatusCode(), runCtx.Response.Body())
	}

	stateCtx := newCtx("GET", "/v1/compact/state", nil)
	s.Handler(stateCtx)
	if stateCtx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("state status = %d", stateCtx.Response.StatusCode())
	}
}

func TestHandleRunRejectedWithoutJWT(t *testing.T) {
	h1 := worker.NewHandle("c1")
	dir := core.NewDirectory([]core.WorkerHandle{h1})
	ctrl := ctlr.New(dir, ctlr.Options{})
	ctrl.Start()
	s := New(ctrl, "topsecret")

	ctx := newCtx("POST", "/v1/compact/run", []byte(`{"all":true}`))
	s.Handler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", ctx.Response.StatusCode())
	}
}

func TestHandleLockAccepted(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := newCtx("POST", "/v1/compact/lock/c1", nil)
	s.Handler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusAccepted {
		t.Fatalf("status = %d, want 202", ctx.Response.StatusCode())
	}
}

func TestHandleUnknownRouteNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := newCtx("GET", "/v1/nope", nil)
	s.Handler(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", ctx.Response.StatusCode())
	}
}
