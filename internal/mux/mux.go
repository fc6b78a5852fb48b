// Package mux drives accepted connections through read/dispatch/write
// cycles under one of four interchangeable concurrency strategies:
// sequential, threaded, readiness and pool. All four satisfy the same
// Strategy contract and are substitutable without changing the behavior
// a client observes.
package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/logferry/logferry/internal/wire"
)

// Handler turns one decoded frame into an encoded response body. The
// server's record sink and query handler sit behind this.
type Handler interface {
	Handle(f wire.Frame) ([]byte, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(f wire.Frame) ([]byte, error)

// Handle calls fn.
func (fn HandlerFunc) Handle(f wire.Frame) ([]byte, error) {
	return fn(f)
}

// Strategy serves a listener until its context is cancelled. For every
// accepted connection it reads command frames, dispatches them to h and
// writes the responses back, closing the connection on peer EOF or
// protocol error without leaking the transport.
type Strategy interface {
	Name() string
	Serve(ctx context.Context, ln net.Listener, h Handler) error
}

// Config carries the strategy knobs set at startup.
type Config struct {
	// Workers is the pool strategy's fixed worker count.
	Workers int
	// DrainTimeout bounds how long in-flight connections may run after
	// shutdown begins before they are force-closed.
	DrainTimeout time.Duration
}

// DefaultConfig returns the knobs used when configuration says nothing.
func DefaultConfig() Config {
	return Config{Workers: 10, DrainTimeout: 5 * time.Second}
}

// New selects the strategy by name: "sequential", "threaded",
// "readiness" or "pool".
func New(name string, log *zap.Logger, cfg Config) (Strategy, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultConfig().DrainTimeout
	}

	switch name {
	case "sequential":
		return &Sequential{log: log, drain: cfg.DrainTimeout}, nil
	case "threaded":
		return NewThreaded(log, cfg.DrainTimeout), nil
	case "readiness":
		return &Readiness{log: log}, nil
	case "pool":
		return &Pool{log: log, workers: cfg.Workers, drain: cfg.DrainTimeout}, nil
	default:
		return nil, fmt.Errorf("mux: unknown strategy %q", name)
	}
}

// serveConn runs the blocking per-connection loop shared by the
// sequential, threaded and pool strategies. onFrame, when non-nil, is
// called once per processed frame. A malformed frame closes only this
// connection and emits one error record.
func serveConn(conn net.Conn, h Handler, log *zap.Logger, onFrame func()) {
	id := uuid.NewString()
	defer conn.Close()

	log.Debug("connection accepted",
		zap.String("conn", id),
		zap.String("remote", conn.RemoteAddr().String()))

	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			if err == io.EOF {
				log.Debug("peer closed connection", zap.String("conn", id))
			} else if errors.Is(err, net.ErrClosed) {
				log.Debug("connection closed during read", zap.String("conn", id))
			} else {
				log.Error("closing connection on protocol error",
					zap.String("conn", id),
					zap.Error(err))
			}
			return
		}

		resp, err := h.Handle(frame)
		if err != nil {
			log.Error("closing connection on dispatch error",
				zap.String("conn", id),
				zap.Error(err))
			return
		}
		if onFrame != nil {
			onFrame()
		}

		if err := writeAll(conn, resp); err != nil {
			log.Error("closing connection on write error",
				zap.String("conn", id),
				zap.Error(err))
			return
		}
	}
}

// writeAll delivers b completely, resuming after short writes so
// nothing is duplicated or dropped.
func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		b = b[n:]
		if err != nil && !errors.Is(err, io.ErrShortWrite) {
			return err
		}
	}
	return nil
}

// shutdownErr reports whether an accept error just means the listener
// was closed for shutdown.
func shutdownErr(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, net.ErrClosed)
}
