// Package nlog is the compaction controller's logger: buffered,
// severity-leveled, size-rotated file logging with an optional stderr echo,
// the way every teacher package logs (nlog.Infof/Errorf/...) rather than
// through the standard library's log package directly.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

// MaxSize is the size threshold, in bytes, past which the info log rotates.
var MaxSize int64 = 4 * 1024 * 1024

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string
	role         string
	title        string

	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	written int64
)

// InitFlags registers the logger's command-line flags; call before flag.Parse.
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

// SetLogDirRole sets the log directory and the process role embedded in
// rotated log file names (e.g. "target", "proxy", "compactctl").
func SetLogDirRole(dir, r string) { logDir, role = dir, r }

// SetTitle sets a banner written at the top of every rotated log file.
func SetTitle(s string) { title = s }

func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Infoln(args ...any)                  { logln(sevInfo, args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Warningln(args ...any)               { logln(sevWarn, args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }
func Errorln(args ...any)                 { logln(sevErr, args...) }

func log(sev severity, format string, args ...any) {
	write(sev, fmt.Sprintf(format, args...))
}

func logln(sev severity, args ...any) {
	write(sev, fmt.Sprintln(args...))
}

func write(sev severity, msg string) {
	line := header(sev) + msg
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	if toStderr || alsoToStderr || sev >= sevWarn {
		os.Stderr.WriteString(line)
		if toStderr {
			return
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		if err := open(); err != nil {
			os.Stderr.WriteString("nlog: " + err.Error() + "\n")
			return
		}
	}
	n, _ := w.WriteString(line)
	written += int64(n)
	if written >= MaxSize {
		rotate()
	}
}

func header(sev severity) string {
	_, fn, ln, ok := runtime.Caller(3)
	if !ok {
		fn, ln = "???", 0
	} else if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
		fn = fn[idx+1:]
	}
	now := time.Now()
	return fmt.Sprintf("%c %s %s:%d ", sevChar[sev], now.Format("15:04:05.000000"), fn, ln)
}

// Flush forces any buffered log content to disk. If exit, the underlying
// file is also synced and closed (used on clean shutdown).
func Flush(exit ...bool) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		return
	}
	w.Flush()
	if len(exit) > 0 && exit[0] {
		file.Sync()
		file.Close()
		file, w = nil, nil
	}
}

// open must be called with mu held.
func open() error {
	if logDir == "" {
		logDir = os.TempDir()
	}
	if role == "" {
		role = "aiscompact"
	}
	name := fmt.Sprintf("%s.%s.%s.log", role, hostname(), time.Now().Format("20060102-150405"))
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	file = f
	w = bufio.NewWriterSize(f, 32*1024)
	written = 0
	if title != "" {
		w.WriteString(title + "\n")
	}
	return nil
}

// rotate must be called with mu held.
func rotate() {
	w.Flush()
	file.Close()
	file, w = nil, nil
	open()
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
