// Package schedule runs deferred state transitions that can be cancelled
// when their owner is torn down.
package schedule

import (
	"sync"
	"time"
)

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped a pending callback.
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Clock reports time elapsed since an arbitrary fixed origin.
type Clock interface {
	Now() time.Duration
}

// Real schedules callbacks on wall-clock time. Callbacks run on their own
// goroutine.
type Real struct {
	start  time.Time
	mu     sync.Mutex
	timers map[*realTimer]struct{}
	closed bool
}

// NewReal returns a wall-clock scheduler.
func NewReal() *Real {
	return &Real{start: time.Now(), timers: map[*realTimer]struct{}{}}
}

// Now returns the wall-clock time elapsed since the scheduler was created.
func (r *Real) Now() time.Duration {
	return time.Since(r.start)
}

type realTimer struct {
	owner *Real
	t     *time.Timer
}

func (rt *realTimer) Stop() bool {
	if rt.t == nil {
		return false
	}
	stopped := rt.t.Stop()
	rt.owner.forget(rt)
	return stopped
}

// AfterFunc implements Scheduler. After Close it returns an inert timer.
func (r *Real) AfterFunc(d time.Duration, f func()) Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt := &realTimer{owner: r}
	if r.closed {
		return rt
	}
	rt.t = time.AfterFunc(d, func() {
		if !r.forget(rt) {
			return
		}
		f()
	})
	r.timers[rt] = struct{}{}
	return rt
}

// Pending returns the number of callbacks that have not fired or been stopped.
func (r *Real) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Close stops every pending callback. It is safe to call more than once.
func (r *Real) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for rt := range r.timers {
		rt.t.Stop()
		delete(r.timers, rt)
	}
}

// forget removes rt from the live set and reports whether it was still live.
func (r *Real) forget(rt *realTimer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.timers[rt]; !ok {
		return false
	}
	delete(r.timers, rt)
	return true
}
