// Package atomic provides small typed wrappers over sync/atomic, the shape
// the teacher's coordinators (res.Res.begin/end, reb.Reb's stage counters)
// reach for instead of raw int64 fields guarded by ad-hoc atomic calls.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package atomic

import "sync/atomic"

type Int64 struct{ v int64 }

func (i *Int64) Load() int64        { return atomic.LoadInt64(&i.v) }
func (i *Int64) Store(val int64)    { atomic.StoreInt64(&i.v, val) }
func (i *Int64) Add(delta int64) int64 { return atomic.AddInt64(&i.v, delta) }

type Int32 struct{ v int32 }

func (i *Int32) Load() int32     { return atomic.LoadInt32(&i.v) }
func (i *Int32) Store(val int32) { atomic.StoreInt32(&i.v, val) }

type Bool struct{ v int32 }

func (b *Bool) Load() bool {
	return atomic.LoadInt32(&b.v) != 0
}

func (b *Bool) Store(val bool) {
	var n int32
	if val {
		n = 1
	}
	atomic.StoreInt32(&b.v, n)
}

// CAS performs a compare-and-swap on the boolean value.
func (b *Bool) CAS(old, newVal bool) bool {
	var o, n int32
	if old {
		o = 1
	}
	if newVal {
		n = 1
	}
	return atomic.CompareAndSwapInt32(&b.v, o, n)
}
