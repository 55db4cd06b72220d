package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/roach88/advect/internal/ir"
)

// dialRetryInterval is the pause between attempts to reach a peer that is
// not listening yet.
const dialRetryInterval = 100 * time.Millisecond

// Connect builds a full TCP mesh for rank and returns its Stream.
//
// addrs[i] is the listen address of rank i. Rank r listens on addrs[r],
// dials every lower rank and accepts every higher rank. The dialer
// announces itself with a Hello frame.
func Connect(ctx context.Context, rank int, addrs []string, opts ...StreamOption) (*Stream, error) {
	size := len(addrs)
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("connect: rank %d outside [0,%d)", rank, size)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addrs[rank])
	if err != nil {
		return nil, fmt.Errorf("connect: listen %s: %w", addrs[rank], err)
	}
	defer ln.Close()

	peers := make(map[int]io.ReadWriteCloser, size-1)
	closeAll := func() {
		for _, c := range peers {
			c.Close()
		}
	}

	type accepted struct {
		rank int
		conn net.Conn
		err  error
	}
	expect := size - 1 - rank
	acceptCh := make(chan accepted, expect)
	go func() {
		for i := 0; i < expect; i++ {
			conn, err := ln.Accept()
			if err != nil {
				acceptCh <- accepted{err: err}
				return
			}
			hello, err := ReadMessage(conn, DefaultLimits())
			if err != nil || hello.Kind != ir.KindHello {
				conn.Close()
				acceptCh <- accepted{err: fmt.Errorf("connect: bad hello: kind=%s err=%v", hello.Kind, err)}
				return
			}
			acceptCh <- accepted{rank: hello.From, conn: conn}
		}
	}()

	for peer := 0; peer < rank; peer++ {
		conn, err := dialPeer(ctx, addrs[peer])
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connect: dial rank %d at %s: %w", peer, addrs[peer], err)
		}
		hello := ir.Message{Kind: ir.KindHello, From: rank, To: peer}
		if err := WriteMessage(conn, hello, DefaultLimits()); err != nil {
			conn.Close()
			closeAll()
			return nil, fmt.Errorf("connect: hello to rank %d: %w", peer, err)
		}
		peers[peer] = conn
	}

	for i := 0; i < expect; i++ {
		select {
		case <-ctx.Done():
			closeAll()
			return nil, ctx.Err()
		case a := <-acceptCh:
			if a.err != nil {
				closeAll()
				return nil, a.err
			}
			if a.rank <= rank || a.rank >= size {
				a.conn.Close()
				closeAll()
				return nil, fmt.Errorf("connect: unexpected hello from rank %d", a.rank)
			}
			if _, dup := peers[a.rank]; dup {
				a.conn.Close()
				closeAll()
				return nil, fmt.Errorf("connect: duplicate connection from rank %d", a.rank)
			}
			peers[a.rank] = a.conn
		}
	}

	return NewStream(rank, size, peers, opts...)
}

func dialPeer(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Join(ctx.Err(), err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialRetryInterval):
		}
	}
}
