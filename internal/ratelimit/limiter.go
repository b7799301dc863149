// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package ratelimit provides sliding-window admission control per provider
// endpoint, with a small controlled burst allowance and exponential backoff
// on consecutive failures.
//
// The limiter never blocks. Allow answers yes or no; WaitSeconds tells a
// denied caller how long to stay away. If the window store is unreachable
// the limiter fails closed (denies) so provider limits are respected even
// when our own bookkeeping is broken.
package ratelimit

import (
	"math"
	"time"

	"github.com/tomtom215/cinegraph/internal/clock"
	"github.com/tomtom215/cinegraph/internal/logging"
	"github.com/tomtom215/cinegraph/internal/metrics"
)

// Defaults matching the provider's published limits.
const (
	DefaultWindow     = 10 * time.Second
	DefaultCapacity   = 40
	DefaultMaxBackoff = 300 * time.Second

	// burstInterval is how often a single admission above capacity is
	// granted, and only while the endpoint has no consecutive failures.
	burstInterval = time.Minute
)

// Limiter is the sliding-window admission controller.
type Limiter struct {
	store      WindowStore
	clk        clock.Clock
	window     time.Duration
	capacity   int
	maxBackoff time.Duration
}

// Options configures a Limiter.
type Options struct {
	Window     time.Duration // default 10s
	Capacity   int           // default 40
	MaxBackoff time.Duration // default 300s
	Clock      clock.Clock   // default system clock
}

// New creates a limiter over the given window store.
func New(store WindowStore, opts Options) *Limiter {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	return &Limiter{
		store:      store,
		clk:        opts.Clock,
		window:     opts.Window,
		capacity:   opts.Capacity,
		maxBackoff: opts.MaxBackoff,
	}
}

// Allow decides whether one request to endpoint may proceed right now.
// An allowed request is recorded in the window immediately; the caller must
// follow up with RecordOutcome once the request finishes.
//
// Above-capacity admissions are granted at most once per minute and only
// while the endpoint has no consecutive failures, so bursts never pile onto
// an endpoint that is already in trouble.
func (l *Limiter) Allow(endpoint string) bool {
	allowed := false
	burst := false

	err := l.store.Update(endpoint, func(w *Window) {
		now := l.clk.Now()
		if w.LastBurstAt.IsZero() {
			// A fresh window earns its first burst a full interval after
			// first use, never on the opening rush.
			w.LastBurstAt = now
		}
		w.Prune(now, l.window)

		switch {
		case len(w.Requests) < l.capacity:
			allowed = true
		case w.ConsecutiveFailures == 0 && now.Sub(w.LastBurstAt) >= burstInterval:
			allowed = true
			burst = true
			w.LastBurstAt = now
		}

		if allowed {
			w.Requests = append(w.Requests, Request{At: now})
			w.TotalAllowed++
		} else {
			w.TotalDenied++
		}
	})
	if err != nil {
		// Fail closed: without window state we must assume the budget is
		// spent rather than hammer the provider.
		logging.Warn().Err(err).Str("endpoint", endpoint).Msg("Rate window store unreachable, denying")
		metrics.RateLimitAdmissions.WithLabelValues(endpoint, "denied").Inc()
		return false
	}

	switch {
	case burst:
		metrics.RateLimitAdmissions.WithLabelValues(endpoint, "burst").Inc()
	case allowed:
		metrics.RateLimitAdmissions.WithLabelValues(endpoint, "allowed").Inc()
	default:
		metrics.RateLimitAdmissions.WithLabelValues(endpoint, "denied").Inc()
	}
	return allowed
}

// RecordOutcome reports the result of an admitted request. A success resets
// the endpoint's consecutive-failure count; a failure increments it and
// starts (or extends) the exponential backoff.
func (l *Limiter) RecordOutcome(endpoint string, success bool) {
	err := l.store.Update(endpoint, func(w *Window) {
		// Tag the oldest admission without an outcome yet.
		for i := range w.Requests {
			if !w.Requests[i].Done {
				w.Requests[i].Done = true
				w.Requests[i].Success = success
				break
			}
		}
		if success {
			w.ConsecutiveFailures = 0
			w.TotalSuccess++
		} else {
			w.ConsecutiveFailures++
			w.LastFailureAt = l.clk.Now()
			w.TotalFailure++
		}
		metrics.RateLimitBackoffSeconds.WithLabelValues(endpoint).
			Set(l.backoff(w.ConsecutiveFailures).Seconds())
	})
	if err != nil {
		logging.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to record request outcome")
	}
}

// WaitSeconds returns how long a denied caller should wait before retrying:
// the larger of the time left until the oldest in-window admission slides
// out, and the remaining failure backoff. If the store is unreachable the
// full backoff cap is returned.
func (l *Limiter) WaitSeconds(endpoint string) int {
	w, err := l.store.Snapshot(endpoint)
	if err != nil {
		return int(l.maxBackoff.Seconds())
	}

	now := l.clk.Now()
	w.Prune(now, l.window)

	var windowWait time.Duration
	if len(w.Requests) >= l.capacity {
		oldest := w.Requests[0].At
		windowWait = oldest.Add(l.window).Sub(now)
	}

	var backoffWait time.Duration
	if w.ConsecutiveFailures > 0 {
		deadline := w.LastFailureAt.Add(l.backoff(w.ConsecutiveFailures))
		backoffWait = deadline.Sub(now)
	}

	wait := windowWait
	if backoffWait > wait {
		wait = backoffWait
	}
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Seconds()))
}

// Reset clears all window state for endpoint.
func (l *Limiter) Reset(endpoint string) {
	if err := l.store.Reset(endpoint); err != nil {
		logging.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to reset rate window")
	}
}

// Snapshot exposes a copy of the endpoint's current window for operational
// introspection (the stats API).
func (l *Limiter) Snapshot(endpoint string) (*Window, error) {
	w, err := l.store.Snapshot(endpoint)
	if err != nil {
		return nil, err
	}
	w.Prune(l.clk.Now(), l.window)
	return w, nil
}

// backoff computes min(2^failures, maxBackoff) as a duration.
func (l *Limiter) backoff(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	// Past 2^9 the cap has long since taken over; avoid overflow.
	if failures > 30 {
		return l.maxBackoff
	}
	d := time.Duration(1<<uint(failures)) * time.Second
	if d > l.maxBackoff {
		return l.maxBackoff
	}
	return d
}
