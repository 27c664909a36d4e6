// Package clock provides the virtual-time abstraction every timer in the
// engine (ARP retry, DHCP T1/T2/expiry, DNS query timeout) schedules
// against, per spec.md §5 and §9 ("Cooperative async → explicit tasks").
// Using an injected Clock instead of time.Sleep/time.AfterFunc lets tests
// drive lease renewal and resolution timeouts deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock time and timer scheduling.
type Clock interface {
	// Now returns the clock's current time.
	Now() time.Time
	// AfterFunc schedules f to run once after d has elapsed on this clock.
	// The returned Timer can cancel the pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the timer from firing, if it hasn't already. It
	// returns true if the stop was effective.
	Stop() bool
}

// Real is a [Clock] backed by the actual wall clock and the Go runtime's
// timer service.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc schedules f with time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }

// Virtual is a [Clock] tests advance manually with [Virtual.Advance]
// instead of sleeping, so DHCP T1/T2/expiry and ARP/DNS timeouts can be
// exercised without real elapsed time (spec.md §8's DHCP renewal property).
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	pending []*virtualTimer
	seq     uint64
}

// NewVirtual returns a Virtual clock starting at the given time.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

type virtualTimer struct {
	due     time.Time
	f       func()
	stopped bool
	fired   bool
	seq     uint64
}

// Now returns the clock's current virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// AfterFunc schedules f to run the next time Advance crosses d past Now.
func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTimer{due: v.now.Add(d), f: f, seq: v.seq}
	v.pending = append(v.pending, t)
	return virtualTimerHandle{v: v, t: t}
}

type virtualTimerHandle struct {
	v *Virtual
	t *virtualTimer
}

func (h virtualTimerHandle) Stop() bool {
	h.v.mu.Lock()
	defer h.v.mu.Unlock()
	if h.t.fired || h.t.stopped {
		return false
	}
	h.t.stopped = true
	return true
}

// Advance moves the virtual clock forward by d, synchronously firing every
// timer whose deadline falls at or before the new time, in deadline order
// (ties broken by scheduling order).
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.now = target
	var due []*virtualTimer
	remaining := v.pending[:0]
	for _, t := range v.pending {
		if !t.stopped && !t.due.After(target) {
			due = append(due, t)
		} else if !t.stopped {
			remaining = append(remaining, t)
		}
	}
	v.pending = remaining
	v.mu.Unlock()

	for i := 0; i < len(due); i++ {
		for j := i + 1; j < len(due); j++ {
			if due[j].due.Before(due[i].due) || (due[j].due.Equal(due[i].due) && due[j].seq < due[i].seq) {
				due[i], due[j] = due[j], due[i]
			}
		}
	}
	for _, t := range due {
		v.mu.Lock()
		already := t.fired || t.stopped
		t.fired = true
		v.mu.Unlock()
		if !already {
			t.f()
		}
	}
}
