// Command compactctl wires the compaction control plane's pieces
// together: container bootstrap, the Controller FSM, the Prometheus
// exporter, the report-log audit trail, and the HTTP control surface.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"flag"
	"os"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/NVIDIA/aiscompact/cmn/config"
	"github.com/NVIDIA/aiscompact/cmn/cos"
	"github.com/NVIDIA/aiscompact/cmn/nlog"
	"github.com/NVIDIA/aiscompact/core"
	"github.com/NVIDIA/aiscompact/ctlapi"
	"github.com/NVIDIA/aiscompact/ctlr"
	"github.com/NVIDIA/aiscompact/metrics"
	"github.com/NVIDIA/aiscompact/reportlog"
	"github.com/NVIDIA/aiscompact/worker"
)

func main() {
	cfg := &config.Config{}
	flset := flag.NewFlagSet("compactctl", flag.ExitOnError)
	config.InitFlags(flset, cfg)
	nlog.InitFlags(flset)
	if err := flset.Parse(os.Args[1:]); err != nil {
		nlog.Errorf("parse flags: %v", err)
		os.Exit(1)
	}
	config.GCO.Finalize(cfg)
	nlog.SetTitle("compactctl")
	defer nlog.Flush(true)

	if cfg.ContainerRoot == "" {
		cos.ExitLogf("missing required -container_root")
	}

	dir, err := core.Discover(cfg.ContainerRoot, isContainerFile, func(id core.ContainerID, path string) core.WorkerHandle {
		return worker.NewHandle(id)
	})
	if err != nil {
		cos.ExitLogf("discover containers under %s: %v", cfg.ContainerRoot, err)
	}

	exporter := metrics.New()

	var reportWriter *reportlog.Writer
	if cfg.ReportLogDir != "" {
		reportWriter, err = reportlog.New(cfg.ReportLogDir, cfg.ReportLogMaxSize)
		if err != nil {
			cos.ExitLogf("open report log: %v", err)
		}
		defer reportWriter.Close()
	}

	opts := ctlr.Options{
		SyncTimeout:   cfg.SyncTimeout,
		OnStatsUpdate: exporter.OnStatsUpdate,
	}
	if reportWriter != nil {
		opts.OnRunComplete = reportWriter.OnRunComplete
	}

	ctrl := ctlr.New(dir, opts)
	ctrl.Start()

	srv := ctlapi.New(ctrl, cfg.JWTSecret)
	nlog.Infof("listening on %s", cfg.HTTPAddr)
	if err := fasthttp.ListenAndServe(cfg.HTTPAddr, srv.Handler); err != nil {
		cos.ExitLogf("serve %s: %v", cfg.HTTPAddr, err)
	}
}

// isContainerFile is the default container-file predicate: any
// non-directory entry under container_root, at any depth, whose path ends
// in the ".container" suffix this deployment's object-server writes. Swap for a different
// predicate if the worker implementation lays containers out differently.
func isContainerFile(path string) bool {
	return strings.HasSuffix(path, ".container")
}
