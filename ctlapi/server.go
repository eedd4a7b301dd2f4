// Package ctlapi is the compaction control plane's HTTP front end
// (SPEC_FULL.md component G): a thin fasthttp server translating
// GET/POST requests into ctlr.Controller calls, encoding replies with
// json-iterator and authenticating mutating endpoints with a bearer JWT —
// the same combination of libraries the teacher's own api/ client package
// already depends on, here put to work on the server side.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package ctlapi

import (
	"strings"

	"github.com/golang-jwt/jwt/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/cmn/config"
	"github.com/NVIDIA/aiscompact/cmn/nlog"
	"github.com/NVIDIA/aiscompact/core"
	"github.com/NVIDIA/aiscompact/ctlr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server exposes a Controller over HTTP:
//
//	GET  /v1/compact/state
//	POST /v1/compact/run        {"targets": [...], "all": bool, "max_concurrency": int, "diagnosing": bool}
//	POST /v1/compact/suspend
//	POST /v1/compact/resume
//	POST /v1/compact/stop       {"id": "..."}
//	POST /v1/compact/lock/{id}
//
// run/suspend/resume/stop/lock require a valid bearer JWT when jwtSecret
// is non-empty; state is always unauthenticated (read-only, spec.md §4.E).
type Server struct {
	ctrl      *ctlr.Controller
	jwtSecret []byte
}

func New(ctrl *ctlr.Controller, jwtSecret string) *Server {
	return &Server{ctrl: ctrl, jwtSecret: []byte(jwtSecret)}
}

func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch {
	case path == "/v1/compact/state" && ctx.IsGet():
		s.handleState(ctx)
	case path == "/v1/compact/run" && ctx.IsPost():
		s.withAuth(ctx, s.handleRun)
	case path == "/v1/compact/suspend" && ctx.IsPost():
		s.withAuth(ctx, s.handleSuspend)
	case path == "/v1/compact/resume" && ctx.IsPost():
		s.withAuth(ctx, s.handleResume)
	case path == "/v1/compact/stop" && ctx.IsPost():
		s.withAuth(ctx, s.handleStop)
	case strings.HasPrefix(path, "/v1/compact/lock/") && ctx.IsPost():
		s.withAuth(ctx, func(ctx *fasthttp.RequestCtx) { s.handleLock(ctx, path) })
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) withAuth(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	if len(s.jwtSecret) == 0 {
		next(ctx)
		return
	}
	auth := string(ctx.Request.Header.Peek("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}
	tokenStr := strings.TrimPrefix(auth, prefix)
	_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}
	next(ctx)
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx) {
	stats, err := s.ctrl.State()
	writeResult(ctx, stats, err)
}

type runRequest struct {
	Targets        []core.ContainerID `json:"targets"`
	All            bool                `json:"all"`
	MaxConcurrency int                 `json:"max_concurrency"`
	Diagnosing     bool                `json:"diagnosing"`
}

func (s *Server) handleRun(ctx *fasthttp.RequestCtx) {
	var req runRequest
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
	}
	if req.MaxConcurrency <= 0 {
		req.MaxConcurrency = config.GCO.Get().DefaultMaxConcurrency
	}

	var (
		stats ctlr.CompactionStats
		err   error
	)
	switch {
	case req.Diagnosing:
		stats, err = s.ctrl.Diagnose()
	case req.All:
		stats, err = s.ctrl.RunAll(req.MaxConcurrency, nil)
	default:
		stats, err = s.ctrl.Run(req.Targets, req.MaxConcurrency, nil)
	}
	writeResult(ctx, stats, err)
}

func (s *Server) handleSuspend(ctx *fasthttp.RequestCtx) {
	stats, err := s.ctrl.Suspend()
	writeResult(ctx, stats, err)
}

func (s *Server) handleResume(ctx *fasthttp.RequestCtx) {
	stats, err := s.ctrl.Resume()
	writeResult(ctx, stats, err)
}

type stopRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleStop(ctx *fasthttp.RequestCtx) {
	var req stopRequest
	if len(ctx.PostBody()) > 0 {
		_ = json.Unmarshal(ctx.PostBody(), &req)
	}
	stats, err := s.ctrl.Stop(req.ID)
	writeResult(ctx, stats, err)
}

func (s *Server) handleLock(ctx *fasthttp.RequestCtx, path string) {
	id := strings.TrimPrefix(path, "/v1/compact/lock/")
	if id == "" {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	s.ctrl.Lock(core.ContainerID(id))
	ctx.SetStatusCode(fasthttp.StatusAccepted)
}

func writeResult(ctx *fasthttp.RequestCtx, stats ctlr.CompactionStats, err error) {
	if err != nil {
		ctx.SetStatusCode(statusForErr(err))
		body, mErr := json.Marshal(map[string]string{"error": err.Error()})
		if mErr != nil {
			nlog.Errorf("ctlapi: marshal error response: %v", mErr)
			return
		}
		ctx.SetContentType("application/json")
		_, _ = ctx.Write(body)
		return
	}
	body, mErr := json.Marshal(stats)
	if mErr != nil {
		nlog.Errorf("ctlapi: marshal state response: %v", mErr)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	_, _ = ctx.Write(body)
}

func statusForErr(err error) int {
	switch err.(type) {
	case *api.ErrTimeout:
		return fasthttp.StatusGatewayTimeout
	case *api.ErrBadState:
		return fasthttp.StatusConflict
	default:
		return fasthttp.StatusInternalServerError
	}
}
