package channel

import (
	"sync"

	"github.com/roach88/advect/internal/ir"
)

// mailbox is a thread-safe FIFO of messages for one rank.
//
// It is unbounded so a sender never blocks on a slow receiver; a payload
// fan-out to many ranks completes in one driver iteration.
//
// The signal channel (buffered, size 1) coalesces wake-ups for a driver
// that is idling in a select.
type mailbox struct {
	mu       sync.Mutex
	messages []ir.Message
	closed   bool
	signal   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		messages: make([]ir.Message, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// put appends msgs and signals availability.
// Returns false if the mailbox is closed.
func (m *mailbox) put(msgs ...ir.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.messages = append(m.messages, msgs...)

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// drain removes and returns every queued message.
func (m *mailbox) drain() []ir.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.messages) == 0 {
		return nil
	}
	out := m.messages
	// Hand the backing array to the caller; start a fresh one so payload
	// references are not retained after the caller drops them.
	m.messages = make([]ir.Message, 0, cap(out))
	return out
}

func (m *mailbox) wait() <-chan struct{} {
	return m.signal
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// close drops queued messages and wakes any waiter.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.messages = nil
	close(m.signal)
}

func (m *mailbox) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
