package channel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/roach88/advect/internal/ir"
)

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithStreamLimits overrides the frame limits.
func WithStreamLimits(l Limits) StreamOption {
	return func(s *Stream) { s.limits = l }
}

// WithStreamLogger sets the logger used for transport diagnostics.
func WithStreamLogger(l *slog.Logger) StreamOption {
	return func(s *Stream) { s.logger = l }
}

type streamPeer struct {
	mu   sync.Mutex // serializes frame writes
	conn io.ReadWriteCloser
}

// Stream is a Channel over one duplex byte stream per peer rank.
// One reader goroutine per peer decodes frames into the local mailbox.
type Stream struct {
	rank   int
	size   int
	box    *mailbox
	peers  map[int]*streamPeer
	limits Limits
	logger *slog.Logger

	wg      sync.WaitGroup
	errMu   sync.Mutex
	readErr error

	closeOnce sync.Once
}

// NewStream builds a Stream from already-connected peers.
// peers must contain every rank except rank itself.
func NewStream(rank, size int, peers map[int]io.ReadWriteCloser, opts ...StreamOption) (*Stream, error) {
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("stream: rank %d outside [0,%d)", rank, size)
	}
	if len(peers) != size-1 {
		return nil, fmt.Errorf("stream: rank %d has %d peers, want %d", rank, len(peers), size-1)
	}

	s := &Stream{
		rank:   rank,
		size:   size,
		box:    newMailbox(),
		peers:  make(map[int]*streamPeer, len(peers)),
		limits: DefaultLimits(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for r, conn := range peers {
		if r == rank || r < 0 || r >= size {
			return nil, fmt.Errorf("stream: invalid peer rank %d", r)
		}
		s.peers[r] = &streamPeer{conn: conn}
	}
	for r, p := range s.peers {
		s.wg.Add(1)
		go s.readLoop(r, p.conn)
	}
	return s, nil
}

func (s *Stream) readLoop(peer int, r io.Reader) {
	defer s.wg.Done()
	for {
		msg, err := ReadMessage(r, s.limits)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || s.box.isClosed() {
				return
			}
			s.logger.Error("stream read failed", "rank", s.rank, "peer", peer, "error", err)
			s.setErr(fmt.Errorf("stream: read from rank %d: %w", peer, err))
			return
		}
		if msg.From != peer || msg.To != s.rank {
			s.logger.Warn("stream frame misaddressed, dropping",
				"rank", s.rank, "peer", peer, "from", msg.From, "to", msg.To, "kind", msg.Kind)
			continue
		}
		s.box.put(msg)
	}
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.readErr == nil {
		s.readErr = err
	}
}

// Err returns the first transport read error, if any.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.readErr
}

func (s *Stream) Rank() int { return s.rank }

func (s *Stream) Size() int { return s.size }

func (s *Stream) Send(to int, msg ir.Message) error {
	if s.box.isClosed() {
		return ErrClosed
	}
	if to < 0 || to >= s.size {
		return fmt.Errorf("%w: %d", ErrUnknownRank, to)
	}
	msg.From, msg.To = s.rank, to
	if to == s.rank {
		s.box.put(msg)
		return nil
	}

	p := s.peers[to]
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := WriteMessage(p.conn, msg, s.limits); err != nil {
		return fmt.Errorf("stream: send %s: %w", msg, err)
	}
	return nil
}

func (s *Stream) Poll() []ir.Message { return s.box.drain() }

func (s *Stream) Ready() <-chan struct{} { return s.box.wait() }

// Close closes every peer connection and waits for the readers to exit.
func (s *Stream) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.box.close()
		for _, p := range s.peers {
			if err := p.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
		s.wg.Wait()
	})
	return errors.Join(errs...)
}
