package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ProbeFunc performs one lightweight vendor request and reports its latency.
type ProbeFunc func(ctx context.Context) (time.Duration, error)

// Tracker accumulates per-adapter usage counters and caches the connectivity
// probe result. Adapters embed one and record every operation outcome.
//
// Counters are plain atomics with no cross-field coordination: a snapshot
// taken mid-update can be momentarily inconsistent, but every counter is
// monotonically non-decreasing within a day window.
type Tracker struct {
	name string

	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	// avgLatencyNs holds a running average folded as (old+new)/2, which
	// weights recent calls more heavily than a true mean.
	avgLatencyNs atomic.Int64

	lastRequestNs atomic.Int64

	// Daily counters reset when the UTC day changes.
	dayStart    atomic.Int64
	dayRequests atomic.Int64
	dayErrors   atomic.Int64

	lastError atomic.Value // string

	statusOverride atomic.Value // HealthStatus

	probeSF singleflight.Group
	probeMu sync.Mutex
	probe   probeState
}

type probeState struct {
	done      bool
	ok        bool
	latency   time.Duration
	checkedAt time.Time
	errMsg    string
}

// NewTracker returns a Tracker for the named adapter.
func NewTracker(name string) *Tracker {
	t := &Tracker{name: name}
	t.dayStart.Store(utcDayStart(time.Now()).UnixNano())
	return t
}

func utcDayStart(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// rollDay resets the daily counters when the UTC day has changed. Racing
// recorders may each observe the flip; the CAS makes the reset happen once.
func (t *Tracker) rollDay(now time.Time) {
	today := utcDayStart(now).UnixNano()
	prev := t.dayStart.Load()
	if prev == today {
		return
	}
	if t.dayStart.CompareAndSwap(prev, today) {
		t.dayRequests.Store(0)
		t.dayErrors.Store(0)
	}
}

// RecordSuccess folds one successful call into the counters.
func (t *Tracker) RecordSuccess(latency time.Duration) {
	now := time.Now()
	t.rollDay(now)
	t.total.Add(1)
	t.succeeded.Add(1)
	t.dayRequests.Add(1)
	t.lastRequestNs.Store(now.UnixNano())
	t.foldLatency(latency)
	// A successful call means any earlier throttling has lifted.
	if override, ok := t.statusOverride.Load().(HealthStatus); ok && override == StatusRateLimited {
		t.statusOverride.Store(HealthStatus(""))
	}
}

// RecordFailure folds one failed call into the counters.
func (t *Tracker) RecordFailure(err *Error) {
	now := time.Now()
	t.rollDay(now)
	t.total.Add(1)
	t.failed.Add(1)
	t.dayRequests.Add(1)
	t.dayErrors.Add(1)
	t.lastRequestNs.Store(now.UnixNano())
	if err != nil {
		t.lastError.Store(err.Message)
	}
}

func (t *Tracker) foldLatency(latency time.Duration) {
	for {
		old := t.avgLatencyNs.Load()
		var next int64
		if old == 0 {
			next = int64(latency)
		} else {
			next = (old + int64(latency)) / 2
		}
		if t.avgLatencyNs.CompareAndSwap(old, next) {
			return
		}
	}
}

// SetStatusOverride forces the reported health status. Adapters call this
// on a vendor-specific signal, e.g. an HTTP 429 or a maintenance notice;
// the tracker never derives these states on its own.
func (t *Tracker) SetStatusOverride(s HealthStatus) {
	t.statusOverride.Store(s)
}

// ClearStatusOverride removes a previously forced status.
func (t *Tracker) ClearStatusOverride() {
	t.statusOverride.Store(HealthStatus(""))
}

// Snapshot returns the cumulative statistics view.
func (t *Tracker) Snapshot() Statistics {
	t.rollDay(time.Now())
	s := Statistics{
		Provider:              t.name,
		TotalRequests:         t.total.Load(),
		SuccessfulRequests:    t.succeeded.Load(),
		FailedRequests:        t.failed.Load(),
		AverageResponseTimeMs: time.Duration(t.avgLatencyNs.Load()).Milliseconds(),
		RequestsToday:         t.dayRequests.Load(),
		ErrorsToday:           t.dayErrors.Load(),
	}
	if ns := t.lastRequestNs.Load(); ns > 0 {
		at := time.Unix(0, ns)
		s.LastRequestAt = &at
	}
	return s
}

// ensureProbe runs fn once per Tracker lifetime, deduplicating concurrent
// callers, and caches the outcome. Subsequent calls return the cache without
// touching the vendor.
func (t *Tracker) ensureProbe(ctx context.Context, fn ProbeFunc) probeState {
	t.probeMu.Lock()
	if t.probe.done {
		st := t.probe
		t.probeMu.Unlock()
		return st
	}
	t.probeMu.Unlock()

	v, _, _ := t.probeSF.Do("probe", func() (any, error) {
		return t.runProbe(ctx, fn), nil
	})
	return v.(probeState)
}

// Reprobe forces a fresh connectivity check, replaces the cached state and
// returns the observed latency.
func (t *Tracker) Reprobe(ctx context.Context, fn ProbeFunc) (time.Duration, error) {
	st := t.runProbe(ctx, fn)
	if !st.ok {
		return st.latency, errors.New(st.errMsg)
	}
	return st.latency, nil
}

func (t *Tracker) runProbe(ctx context.Context, fn ProbeFunc) probeState {
	latency, err := fn(ctx)
	st := probeState{
		done:      true,
		ok:        err == nil,
		latency:   latency,
		checkedAt: time.Now(),
	}
	if err != nil {
		st.errMsg = err.Error()
	}
	t.probeMu.Lock()
	t.probe = st
	t.probeMu.Unlock()
	return st
}

// Health derives the availability snapshot from the cached probe and the
// running counters, probing lazily via fn when no probe has happened yet.
func (t *Tracker) Health(ctx context.Context, enabled bool, fn ProbeFunc) HealthSnapshot {
	snap := HealthSnapshot{
		Provider:   t.name,
		ErrorCount: t.failed.Load(),
	}

	// Percentage over recorded traffic; zero traffic reports 0, not 100.
	if total := t.total.Load(); total > 0 {
		snap.SuccessRate = float64(t.succeeded.Load()) / float64(total) * 100
	}
	// No independent liveness sampling exists, so uptime mirrors the
	// request success rate.
	snap.Uptime = snap.SuccessRate

	if !enabled {
		snap.Status = StatusInactive
		snap.LastChecked = time.Now()
		return snap
	}

	probe := t.ensureProbe(ctx, fn)
	snap.LastChecked = probe.checkedAt
	snap.ResponseTimeMs = probe.latency.Milliseconds()
	snap.LastError = probe.errMsg

	if msg, ok := t.lastError.Load().(string); ok && msg != "" && snap.LastError == "" {
		snap.LastError = msg
	}

	if override, ok := t.statusOverride.Load().(HealthStatus); ok && override != "" {
		snap.Status = override
		return snap
	}
	if probe.ok {
		snap.Status = StatusActive
	} else {
		snap.Status = StatusError
	}
	return snap
}
