package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/cardstack/internal/gesture"
)

const notifyBuffer = 64

// Notifier forwards controller events to the UI loop. Observe never blocks:
// when the buffer is full the event is dropped, since the next frame
// redraws from the stack anyway.
type Notifier struct {
	mu     sync.Mutex
	ch     chan gesture.Event
	closed bool
}

// NewNotifier returns a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan gesture.Event, notifyBuffer)}
}

// Observe implements gesture.Observer.
func (n *Notifier) Observe(ev gesture.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.ch <- ev:
	default:
	}
}

// Close releases a pending listen command. It is idempotent.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	close(n.ch)
}

type stackEventMsg gesture.Event

func listen(ch <-chan gesture.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return stackEventMsg(ev)
	}
}
