// Package mono provides a process-lifetime monotonic clock used for
// connection idle tracking (corebus's reaper).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

// epoch is captured once at process start; NanoTime reports elapsed
// nanoseconds since then. Unlike wall-clock time, it never jumps
// backward on NTP adjustment, which is what housekeeping and send-timeout
// arithmetic actually need.
var epoch = time.Now()

func NanoTime() int64 { return time.Since(epoch).Nanoseconds() }

// Since reports the time elapsed since an earlier NanoTime() reading.
func Since(start int64) time.Duration { return time.Duration(NanoTime() - start) }
