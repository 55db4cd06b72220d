package channel

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/roach88/advect/internal/ir"
)

// Faults configures message-level fault injection on a Hub.
// Faults never lose messages; they only duplicate and reorder them.
type Faults struct {
	// Seed makes the injected faults reproducible.
	Seed uint64

	// Duplicate is the probability in [0,1] that a sent message is
	// delivered twice. A message is duplicated at most once.
	Duplicate float64

	// Reorder shuffles every batch returned by Poll.
	Reorder bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithEncoding round-trips every message through the frame codec so the
// receiver gets its own copy of the payload bytes.
func WithEncoding(limits Limits) HubOption {
	return func(h *Hub) {
		h.encode = true
		h.limits = limits
	}
}

// WithFaults enables fault injection.
func WithFaults(f Faults) HubOption {
	return func(h *Hub) {
		h.faults = f
		h.rng = rand.New(rand.NewPCG(f.Seed, 0x9e3779b97f4a7c15))
	}
}

// Hub is an in-process message channel connecting size ranks.
//
// Thread-safety: endpoints may be used from different goroutines; each
// endpoint is expected to be polled by a single driver goroutine.
type Hub struct {
	boxes  []*mailbox
	encode bool
	limits Limits

	faults Faults
	rngMu  sync.Mutex
	rng    *rand.Rand

	statsMu sync.Mutex
	dropped int
}

// NewHub creates a hub with one mailbox per rank.
func NewHub(size int, opts ...HubOption) (*Hub, error) {
	if size <= 0 {
		return nil, fmt.Errorf("hub: size must be positive, got %d", size)
	}
	h := &Hub{
		boxes:  make([]*mailbox, size),
		limits: DefaultLimits(),
	}
	for i := range h.boxes {
		h.boxes[i] = newMailbox()
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.faults.Duplicate < 0 || h.faults.Duplicate > 1 {
		return nil, fmt.Errorf("hub: duplicate probability %v outside [0,1]", h.faults.Duplicate)
	}
	return h, nil
}

// Endpoint returns the Channel for rank.
func (h *Hub) Endpoint(rank int) Channel {
	if rank < 0 || rank >= len(h.boxes) {
		panic(fmt.Sprintf("hub: endpoint %d outside [0,%d)", rank, len(h.boxes)))
	}
	return &hubEndpoint{hub: h, rank: rank}
}

// Size returns the number of ranks.
func (h *Hub) Size() int { return len(h.boxes) }

// Pending returns the number of undelivered messages for rank.
func (h *Hub) Pending(rank int) int { return h.boxes[rank].len() }

// Dropped returns how many messages were addressed to closed endpoints.
func (h *Hub) Dropped() int {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return h.dropped
}

// Close closes every endpoint.
func (h *Hub) Close() error {
	for _, b := range h.boxes {
		b.close()
	}
	return nil
}

func (h *Hub) deliver(msg ir.Message) error {
	if h.encode {
		var buf bytes.Buffer
		if err := WriteMessage(&buf, msg, h.limits); err != nil {
			return fmt.Errorf("hub: encode %s: %w", msg, err)
		}
		decoded, err := ReadMessage(&buf, h.limits)
		if err != nil {
			return fmt.Errorf("hub: decode %s: %w", msg, err)
		}
		msg = decoded
	}

	copies := []ir.Message{msg}
	if h.faults.Duplicate > 0 && h.roll() < h.faults.Duplicate {
		copies = append(copies, msg)
	}
	if !h.boxes[msg.To].put(copies...) {
		h.statsMu.Lock()
		h.dropped += len(copies)
		h.statsMu.Unlock()
	}
	return nil
}

func (h *Hub) roll() float64 {
	h.rngMu.Lock()
	defer h.rngMu.Unlock()
	return h.rng.Float64()
}

func (h *Hub) shuffle(msgs []ir.Message) {
	h.rngMu.Lock()
	defer h.rngMu.Unlock()
	h.rng.Shuffle(len(msgs), func(i, j int) { msgs[i], msgs[j] = msgs[j], msgs[i] })
}

type hubEndpoint struct {
	hub  *Hub
	rank int
}

func (e *hubEndpoint) Rank() int { return e.rank }

func (e *hubEndpoint) Size() int { return len(e.hub.boxes) }

func (e *hubEndpoint) Send(to int, msg ir.Message) error {
	if e.hub.boxes[e.rank].isClosed() {
		return ErrClosed
	}
	if to < 0 || to >= len(e.hub.boxes) {
		return fmt.Errorf("%w: %d", ErrUnknownRank, to)
	}
	msg.From, msg.To = e.rank, to
	return e.hub.deliver(msg)
}

func (e *hubEndpoint) Poll() []ir.Message {
	msgs := e.hub.boxes[e.rank].drain()
	if e.hub.faults.Reorder && len(msgs) > 1 {
		msgs = slices.Clone(msgs)
		e.hub.shuffle(msgs)
	}
	return msgs
}

func (e *hubEndpoint) Ready() <-chan struct{} {
	return e.hub.boxes[e.rank].wait()
}

func (e *hubEndpoint) Close() error {
	e.hub.boxes[e.rank].close()
	return nil
}
