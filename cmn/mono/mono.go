// Package mono provides a low-level monotonic clock for interval math that
// must never observe wall-clock adjustments. No other package in this
// module imports it.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonic nanosecond reading anchored at process start.
// Only deltas between two NanoTime() calls are meaningful.
func NanoTime() int64 { return int64(time.Since(start)) }
