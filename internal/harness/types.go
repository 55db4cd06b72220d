package harness

import (
	"github.com/roach88/advect/internal/channel"
	"github.com/roach88/advect/internal/cluster"
	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/ir"
)

// TraceEvent is one message in the run's global send order.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Kind  string `json:"kind"`
	From  int    `json:"from"`
	To    int    `json:"to"`
	Key   string `json:"key,omitempty"`
	Bytes int    `json:"bytes"`

	// Domain is the key's domain index, or -1 for Done.
	Domain int `json:"-"`
}

func traceEvents(entries []channel.TraceEntry) []TraceEvent {
	events := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		ev := TraceEvent{
			Seq:    e.Seq,
			Kind:   e.Kind.String(),
			From:   e.From,
			To:     e.To,
			Domain: -1,
			Bytes:  e.Bytes,
		}
		if e.Kind != ir.KindDone {
			ev.Key = e.Key.String()
			ev.Domain = e.Key.Domain
		}
		events = append(events, ev)
	}
	return events
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if the run completed and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every message sent, in global send order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Run is nil when the run itself failed.
	Run *cluster.Result `json:"-"`

	// Phases holds the final phase of each rank.
	Phases []engine.Phase `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
