package channel

import (
	"errors"

	"github.com/roach88/advect/internal/ir"
)

var (
	// ErrClosed is returned by Send on a closed endpoint.
	ErrClosed = errors.New("channel: closed")

	// ErrUnknownRank is returned by Send for a destination outside [0, Size).
	ErrUnknownRank = errors.New("channel: unknown rank")
)

// Channel is one rank's endpoint of the message channel.
//
// Send and Poll never block on the peer. Poll returns every message that
// has arrived since the previous Poll, possibly none.
type Channel interface {
	// Rank returns this endpoint's rank.
	Rank() int

	// Size returns the number of ranks.
	Size() int

	// Send delivers msg to rank to. msg.From and msg.To are overwritten
	// with the endpoint's rank and to.
	Send(to int, msg ir.Message) error

	// Poll drains and returns all ready messages without blocking.
	Poll() []ir.Message

	// Ready signals that messages may be available. A driver with no local
	// work selects on it instead of spinning.
	Ready() <-chan struct{}

	// Close releases the endpoint. Messages sent to a closed endpoint are dropped.
	Close() error
}
