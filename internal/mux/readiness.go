package mux

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/logferry/logferry/internal/wire"
)

// connState tracks where a connection sits in its lifecycle.
type connState int

const (
	stateAccepted connState = iota
	stateReadable
	stateWritePending
	stateClosing
	stateClosed
)

// rconn is one connection's state, owned exclusively by the control
// loop. `in` assembles frames from readability chunks; `out` queues
// encoded responses awaiting delivery. A connection with an empty out
// queue carries no write interest.
type rconn struct {
	id    string
	conn  net.Conn
	in    []byte
	out   [][]byte
	state connState
}

// readEvent is a readability notification: a chunk of bytes, a peer
// EOF, or a transport error on one connection.
type readEvent struct {
	c    *rconn
	data []byte
	err  error
}

// Readiness multiplexes every connection from a single control loop, in
// the manner of a select/poll server. Per-connection pumps block on the
// transport and deliver readiness events; all protocol state lives in
// the loop, so no locking is needed and one slow or broken connection
// never corrupts another.
type Readiness struct {
	log *zap.Logger
}

// Name identifies the strategy in configuration and logs.
func (r *Readiness) Name() string { return "readiness" }

// Serve runs the control loop until ctx is cancelled.
func (r *Readiness) Serve(ctx context.Context, ln net.Listener, h Handler) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	loopDone := make(chan struct{})
	defer close(loopDone)

	events := make(chan readEvent)
	accepts := make(chan net.Conn)
	acceptErrs := make(chan error, 1)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case acceptErrs <- err:
				case <-loopDone:
				}
				return
			}
			select {
			case accepts <- conn:
			case <-loopDone:
				conn.Close()
				return
			}
		}
	}()

	conns := make(map[*rconn]struct{})
	closeAll := func() {
		for c := range conns {
			c.state = stateClosed
			c.conn.Close()
		}
	}

	for {
		select {
		case <-ctx.Done():
			closeAll()
			return nil

		case err := <-acceptErrs:
			closeAll()
			if shutdownErr(ctx, err) {
				return nil
			}
			return err

		case conn := <-accepts:
			c := &rconn{id: uuid.NewString(), conn: conn, state: stateAccepted}
			conns[c] = struct{}{}
			r.log.Debug("connection accepted",
				zap.String("conn", c.id),
				zap.String("remote", conn.RemoteAddr().String()))
			go r.pump(c, events, loopDone)

		case ev := <-events:
			if _, ok := conns[ev.c]; !ok {
				continue // already closed by the loop
			}
			r.handleEvent(ev, h, conns)
		}
	}
}

// pump blocks on the transport and reports readability to the loop. It
// owns no protocol state.
func (r *Readiness) pump(c *rconn, events chan<- readEvent, loopDone <-chan struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		var data []byte
		if n > 0 {
			data = append([]byte(nil), buf[:n]...)
		}
		select {
		case events <- readEvent{c: c, data: data, err: err}:
		case <-loopDone:
			return
		}
		if err != nil {
			return
		}
	}
}

func (r *Readiness) handleEvent(ev readEvent, h Handler, conns map[*rconn]struct{}) {
	c := ev.c

	if len(ev.data) > 0 {
		c.state = stateReadable
		c.in = append(c.in, ev.data...)
		for {
			frame, n, err := wire.ParseFrame(c.in)
			if err == wire.ErrIncomplete {
				break
			}
			if err != nil {
				r.log.Error("closing connection on protocol error",
					zap.String("conn", c.id),
					zap.Error(err))
				r.closeConn(c, conns)
				return
			}
			c.in = c.in[n:]

			resp, err := h.Handle(frame)
			if err != nil {
				r.log.Error("closing connection on dispatch error",
					zap.String("conn", c.id),
					zap.Error(err))
				r.closeConn(c, conns)
				return
			}
			c.out = append(c.out, resp)
		}

		if len(c.out) > 0 {
			c.state = stateWritePending
			if err := r.flush(c); err != nil {
				r.log.Error("closing connection on write error",
					zap.String("conn", c.id),
					zap.Error(err))
				r.closeConn(c, conns)
				return
			}
			c.state = stateReadable
		}
	}

	if ev.err != nil {
		if ev.err != io.EOF && !errors.Is(ev.err, net.ErrClosed) {
			r.log.Error("closing connection on read error",
				zap.String("conn", c.id),
				zap.Error(ev.err))
		}
		r.closeConn(c, conns)
	}
}

// flush drains the outbound queue. A partial write leaves the unsent
// remainder at the front of the queue, so bytes are delivered in order
// with nothing duplicated or dropped.
func (r *Readiness) flush(c *rconn) error {
	for len(c.out) > 0 {
		n, err := c.conn.Write(c.out[0])
		if n < len(c.out[0]) {
			c.out[0] = c.out[0][n:]
			if err != nil && !errors.Is(err, io.ErrShortWrite) {
				return err
			}
			continue
		}
		c.out = c.out[1:]
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Readiness) closeConn(c *rconn, conns map[*rconn]struct{}) {
	c.state = stateClosing
	c.conn.Close()
	c.state = stateClosed
	delete(conns, c)
}
