// Package reportlog is the compaction control plane's audit trail
// (SPEC_FULL.md component I): every completed run's sorted report list is
// appended, lz4-compressed, to a size-rotated log file independent of the
// in-memory CompactionStats.Reports the Controller carries only for the
// lifetime of a single run. Rotation mirrors cmn/nlog's size-threshold
// policy; compression uses the same pierrec/lz4 stream codec the
// teacher's on-disk object format depends on.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package reportlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"

	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/cmn/nlog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultMaxSize = 16 * 1024 * 1024

// Writer appends api.Reports batches as lz4-framed, newline-delimited JSON
// records, rotating to a new file once the current one exceeds MaxSize.
type Writer struct {
	mu      sync.Mutex
	dir     string
	maxSize int64

	f       *os.File
	lz      *lz4.Writer
	written int64
}

func New(dir string, maxSize int64) (*Writer, error) {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if dir == "" {
		return nil, errors.New("reportlog: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "reportlog: create directory")
	}
	w := &Writer{dir: dir, maxSize: maxSize}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) open() error {
	name := filepath.Join(w.dir, fmt.Sprintf("compaction-reports.%d.log.lz4", time.Now().UnixNano()))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "reportlog: open %s", name)
	}
	w.f = f
	w.lz = lz4.NewWriter(f)
	w.written = 0
	return nil
}

func (w *Writer) rotate() error {
	if err := w.lz.Close(); err != nil {
		nlog.Warningf("reportlog: close lz4 stream: %v", err)
	}
	if err := w.f.Close(); err != nil {
		nlog.Warningf("reportlog: close file: %v", err)
	}
	return w.open()
}

// OnRunComplete is a ctlr.Options.OnRunComplete implementation: wire it
// directly when constructing the Controller.
func (w *Writer) OnRunComplete(reports api.Reports) {
	if err := w.Append(reports); err != nil {
		nlog.Errorf("reportlog: append: %v", err)
	}
}

// Append writes one record per report, each on its own line, rotating
// first if the current file has already crossed MaxSize.
func (w *Writer) Append(reports api.Reports) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written >= w.maxSize {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	for _, r := range reports {
		line, err := json.Marshal(r)
		if err != nil {
			return errors.Wrap(err, "reportlog: marshal report")
		}
		line = append(line, '\n')
		n, err := w.lz.Write(line)
		if err != nil {
			return errors.Wrap(err, "reportlog: write")
		}
		w.written += int64(n)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.lz.Close(); err != nil {
		return err
	}
	return w.f.Close()
}
