package channel

import (
	"sync"

	"github.com/roach88/advect/internal/ir"
)

// TraceEntry is one recorded send.
type TraceEntry struct {
	Seq   int64
	Kind  ir.Kind
	From  int
	To    int
	Key   ir.DomainKey
	Bytes int
}

// Trace records every message sent through the channels it wraps.
// One Trace is shared by all ranks of a run so Seq is a global order.
type Trace struct {
	mu      sync.Mutex
	seq     int64
	entries []TraceEntry
}

// NewTrace creates an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Wrap returns a Channel that records successful sends into t.
func (t *Trace) Wrap(ch Channel) Channel {
	return &traced{Channel: ch, trace: t}
}

// Entries returns a copy of the recorded entries in send order.
func (t *Trace) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Count returns how many entries satisfy match.
func (t *Trace) Count(match func(TraceEntry) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if match(e) {
			n++
		}
	}
	return n
}

func (t *Trace) record(msg ir.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	e := TraceEntry{
		Seq:   t.seq,
		Kind:  msg.Kind,
		From:  msg.From,
		To:    msg.To,
		Bytes: len(msg.Data),
	}
	if msg.Kind == ir.KindDatasetRequest || msg.Kind == ir.KindDatasetPayload {
		e.Key = msg.Key
	}
	t.entries = append(t.entries, e)
}

type traced struct {
	Channel
	trace *Trace
}

func (c *traced) Send(to int, msg ir.Message) error {
	msg.From, msg.To = c.Rank(), to
	if err := c.Channel.Send(to, msg); err != nil {
		return err
	}
	c.trace.record(msg)
	return nil
}
