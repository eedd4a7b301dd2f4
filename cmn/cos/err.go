// Package cos provides small low-level types and utilities shared across
// the compaction control plane.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	ratomic "sync/atomic"

	"github.com/NVIDIA/aiscompact/cmn/debug"
	"github.com/NVIDIA/aiscompact/cmn/nlog"
)

type (
	ErrNotFound struct {
		what string
	}
	// Errs accumulates distinct errors up to a cap, the way a fan-out
	// across many container handles accumulates per-handle failures.
	Errs struct {
		errs []error
		cnt  int64
		mu   sync.Mutex
	}
)

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

const maxErrs = 8

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

func (e *Errs) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return ""
	}
	err := e.errs[0]
	if len(e.errs) > 1 {
		return fmt.Sprintf("%v (and %d more)", err, len(e.errs)-1)
	}
	return err.Error()
}

func (e *Errs) JoinErr() (cnt int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cnt = len(e.errs)
	if cnt > 0 {
		err = errors.Join(e.errs...)
	}
	return
}

//
// fatal shutdown
//

const fatalPrefix = "FATAL ERROR: "

// ExitLogf writes a fatal message to stderr, also logs it through nlog when
// the default command-line flag set has been parsed, and terminates the
// process. Used by the Controller on a protocol violation (receiving
// Finish while Idling): the spec calls this case fatal, so the FSM stops.
func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	if flag.Parsed() {
		nlog.Errorln(msg)
		nlog.Flush(true)
	}
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
