// Package config holds the compaction controller's process-wide settings,
// parsed once from flags and held behind an atomic pointer so hot paths
// read a consistent snapshot without locking — the same "Global Config
// Owner" shape the teacher exposes as cmn.GCO.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"flag"
	"sync/atomic"
	"time"
)

type Config struct {
	// ContainerRoot is walked at startup to discover container files.
	ContainerRoot string
	// DefaultMaxConcurrency backs run() = run(1, nil) and similar
	// zero-value call sites.
	DefaultMaxConcurrency int
	// SyncTimeout bounds every synchronous controller call
	// (Run/Suspend/Resume/Stop/State), per spec.md §5.
	SyncTimeout time.Duration
	// HTTPAddr is the control-plane front end's listen address.
	HTTPAddr string
	// JWTSecret signs/verifies bearer tokens for mutating endpoints.
	JWTSecret string
	// ReportLogDir/ReportLogMaxSize configure the audit trail of
	// completed-run reports (component I in SPEC_FULL.md).
	ReportLogDir     string
	ReportLogMaxSize int64
}

func defaults() *Config {
	return &Config{
		DefaultMaxConcurrency: 1,
		SyncTimeout:           3 * time.Second,
		HTTPAddr:              ":51080",
		ReportLogMaxSize:      16 * 1024 * 1024,
	}
}

// owner is the Global Config Owner: an atomic pointer to the current
// *Config, swapped wholesale on (re)load, never mutated in place.
type owner struct {
	p atomic.Pointer[Config]
}

var GCO = &owner{}

func init() { GCO.p.Store(defaults()) }

func (o *owner) Get() *Config { return o.p.Load() }

func (o *owner) Put(c *Config) { o.p.Store(c) }

// InitFlags registers configuration flags on flset; call Parse() on flset,
// then Finalize() to commit the parsed values as the global config.
func InitFlags(flset *flag.FlagSet, c *Config) {
	flset.StringVar(&c.ContainerRoot, "container_root", "", "root directory to discover container files under")
	flset.IntVar(&c.DefaultMaxConcurrency, "max_concurrency", 1, "default concurrency cap for run()")
	flset.DurationVar(&c.SyncTimeout, "sync_timeout", 3*time.Second, "synchronous controller call timeout")
	flset.StringVar(&c.HTTPAddr, "http_addr", ":51080", "control-plane HTTP listen address")
	flset.StringVar(&c.JWTSecret, "jwt_secret", "", "HMAC secret for bearer-JWT auth on mutating endpoints")
	flset.StringVar(&c.ReportLogDir, "report_log_dir", "", "directory for the compressed compaction-report audit log")
	flset.Int64Var(&c.ReportLogMaxSize, "report_log_max_size", 16*1024*1024, "report log rotation threshold, bytes")
}

// Finalize commits c as the process-wide config snapshot.
func (o *owner) Finalize(c *Config) { o.Put(c) }
