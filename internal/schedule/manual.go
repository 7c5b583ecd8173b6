package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a virtual-clock scheduler. Callbacks run synchronously inside
// Advance, in due-time order, ties in scheduling order.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*manualTimer
	closed  bool
}

type manualTimer struct {
	owner *Manual
	due   time.Duration
	seq   int
	f     func()
}

func (mt *manualTimer) Stop() bool {
	return mt.owner.remove(mt)
}

// NewManual returns a scheduler whose clock starts at zero.
func NewManual() *Manual {
	return &Manual{}
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := &manualTimer{owner: m, due: m.now + d, seq: m.seq, f: f}
	m.seq++
	if m.closed {
		return mt
	}
	m.pending = append(m.pending, mt)
	return mt
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of callbacks waiting to fire.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d and runs every callback that falls
// due, including callbacks scheduled by callbacks within the window.
func (m *Manual) Advance(d time.Duration) {
	m.AdvanceTo(m.Now() + d)
}

// AdvanceTo moves the clock to t. Moving backwards is a no-op.
func (m *Manual) AdvanceTo(t time.Duration) {
	for {
		m.mu.Lock()
		if t < m.now {
			m.mu.Unlock()
			return
		}
		next := m.nextDueLocked(t)
		if next == nil {
			m.now = t
			m.mu.Unlock()
			return
		}
		m.now = next.due
		m.mu.Unlock()
		next.f()
	}
}

// Drain runs every pending callback, advancing the clock as needed.
func (m *Manual) Drain() {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		last := m.now
		for _, mt := range m.pending {
			if mt.due > last {
				last = mt.due
			}
		}
		m.mu.Unlock()
		m.AdvanceTo(last)
	}
}

// Close drops every pending callback.
func (m *Manual) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.pending = nil
}

func (m *Manual) nextDueLocked(limit time.Duration) *manualTimer {
	if len(m.pending) == 0 {
		return nil
	}
	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].due == m.pending[j].due {
			return m.pending[i].seq < m.pending[j].seq
		}
		return m.pending[i].due < m.pending[j].due
	})
	head := m.pending[0]
	if head.due > limit {
		return nil
	}
	m.pending = m.pending[1:]
	return head
}

func (m *Manual) remove(mt *manualTimer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pending {
		if p == mt {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return true
		}
	}
	return false
}
