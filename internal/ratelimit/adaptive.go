// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package ratelimit

import (
	"math"
	"runtime"
	"time"

	"github.com/tomtom215/cinegraph/internal/clock"
)

// Peak hours during which the adaptive limiter stretches waits.
const (
	peakStartHour = 18
	peakEndHour   = 23
	peakFactor    = 1.2
)

// AdaptiveLimiter wraps a Limiter and scales the suggested wait by current
// load conditions: memory pressure in this process and the time of day.
// Admission decisions are unchanged; only pacing advice stretches.
type AdaptiveLimiter struct {
	*Limiter
	clk clock.Clock

	// memLoadFunc returns a factor >= 1.0 derived from memory pressure.
	// Swappable in tests.
	memLoadFunc func() float64
	// hourFunc returns the local hour of day. Swappable in tests.
	hourFunc func() int
}

// NewAdaptive wraps limiter with load-aware wait scaling.
func NewAdaptive(limiter *Limiter, clk clock.Clock) *AdaptiveLimiter {
	if clk == nil {
		clk = clock.NewSystem()
	}
	a := &AdaptiveLimiter{Limiter: limiter, clk: clk}
	a.memLoadFunc = memoryLoadFactor
	a.hourFunc = func() int { return a.clk.Now().Local().Hour() }
	return a
}

// WaitSeconds returns the base wait scaled by the memory-pressure load
// factor and the time-of-day factor, capped at the limiter's max backoff.
func (a *AdaptiveLimiter) WaitSeconds(endpoint string) int {
	base := a.Limiter.WaitSeconds(endpoint)
	if base == 0 {
		return 0
	}

	factor := a.memLoadFunc()
	if h := a.hourFunc(); h >= peakStartHour && h <= peakEndHour {
		factor *= peakFactor
	}

	scaled := int(math.Ceil(float64(base) * factor))
	if maxWait := int(a.Limiter.maxBackoff / time.Second); scaled > maxWait {
		return maxWait
	}
	return scaled
}

// memoryLoadFactor maps current heap pressure onto a scaling factor in
// [1.0, 1.5]. Above 80% heap-in-use relative to the heap the runtime has
// reserved, waits stretch linearly.
func memoryLoadFactor() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapSys == 0 {
		return 1.0
	}
	used := float64(ms.HeapInuse) / float64(ms.HeapSys)
	if used <= 0.8 {
		return 1.0
	}
	// 0.8 -> 1.0, 1.0 -> 1.5
	return 1.0 + (used-0.8)*2.5
}
