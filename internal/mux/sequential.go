package mux

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// Sequential handles one connection fully before accepting the next.
// Suitable only for single-client testing; a stalled peer stalls the
// whole server.
type Sequential struct {
	log   *zap.Logger
	drain time.Duration
}

// Name identifies the strategy in configuration and logs.
func (s *Sequential) Name() string { return "sequential" }

// Serve accepts and handles connections one at a time until ctx is
// cancelled. A connection still in flight at shutdown gets the drain
// window before it is force-closed.
func (s *Sequential) Serve(ctx context.Context, ln net.Listener, h Handler) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if shutdownErr(ctx, err) {
				return nil
			}
			return err
		}

		done := make(chan struct{})
		watch := context.AfterFunc(ctx, func() {
			select {
			case <-done:
			case <-time.After(s.drain):
				s.log.Warn("drain window elapsed, force-closing connection")
				conn.Close()
			}
		})
		serveConn(conn, h, s.log, nil)
		close(done)
		watch()
	}
}
