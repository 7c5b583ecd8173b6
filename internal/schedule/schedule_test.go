package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestRealRunsCallback(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := NewReal()
	done := make(chan struct{})
	s.AfterFunc(5*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("callback did not fire")
	}
	if got := s.Pending(); got != 0 {
		t.Fatalf("expected no pending timers, got %d", got)
	}
}

func TestRealCloseCancelsPending(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := NewReal()
	var fired atomic.Bool
	s.AfterFunc(20*time.Millisecond, func() { fired.Store(true) })
	s.Close()
	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Fatalf("callback fired after Close")
	}
	timer := s.AfterFunc(time.Millisecond, func() { fired.Store(true) })
	if timer.Stop() {
		t.Fatalf("expected inert timer after Close")
	}
	time.Sleep(10 * time.Millisecond)
	if fired.Load() {
		t.Fatalf("callback scheduled after Close fired")
	}
}

func TestRealStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := NewReal()
	var fired atomic.Bool
	timer := s.AfterFunc(20*time.Millisecond, func() { fired.Store(true) })
	if !timer.Stop() {
		t.Fatalf("expected Stop to cancel pending callback")
	}
	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Fatalf("stopped callback fired")
	}
}

func TestManualOrdering(t *testing.T) {
	m := NewManual()
	var order []string
	m.AfterFunc(400*time.Millisecond, func() { order = append(order, "b") })
	m.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	m.AfterFunc(400*time.Millisecond, func() { order = append(order, "c") })

	m.Advance(99 * time.Millisecond)
	if len(order) != 0 {
		t.Fatalf("expected nothing to fire yet, got %v", order)
	}
	m.Advance(301 * time.Millisecond)
	if diff := cmp.Diff([]string{"a", "b", "c"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if m.Now() != 400*time.Millisecond {
		t.Fatalf("unexpected clock %v", m.Now())
	}
}

func TestManualChainedCallbacks(t *testing.T) {
	m := NewManual()
	var fired []time.Duration
	m.AfterFunc(400*time.Millisecond, func() {
		fired = append(fired, m.Now())
		m.AfterFunc(400*time.Millisecond, func() {
			fired = append(fired, m.Now())
		})
	})
	m.Advance(time.Second)
	want := []time.Duration{400 * time.Millisecond, 800 * time.Millisecond}
	if diff := cmp.Diff(want, fired); diff != "" {
		t.Fatalf("chained callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestManualStopAndClose(t *testing.T) {
	m := NewManual()
	fired := 0
	timer := m.AfterFunc(time.Millisecond, func() { fired++ })
	if !timer.Stop() {
		t.Fatalf("expected Stop to remove pending callback")
	}
	if timer.Stop() {
		t.Fatalf("second Stop should report false")
	}
	m.AfterFunc(time.Millisecond, func() { fired++ })
	m.Close()
	m.Drain()
	if fired != 0 {
		t.Fatalf("expected no callbacks, got %d", fired)
	}
}

func TestManualDrain(t *testing.T) {
	m := NewManual()
	fired := 0
	m.AfterFunc(time.Second, func() {
		fired++
		m.AfterFunc(time.Second, func() { fired++ })
	})
	m.Drain()
	if fired != 2 {
		t.Fatalf("expected 2 callbacks, got %d", fired)
	}
	if m.Pending() != 0 {
		t.Fatalf("expected nothing pending after drain")
	}
}
