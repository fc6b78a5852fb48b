package mux

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pool runs a fixed number of workers pulling accepted connections from
// a shared queue. Shutdown stops admission first, then drains in-flight
// connections within the drain window before force-closing them.
type Pool struct {
	log     *zap.Logger
	workers int
	drain   time.Duration
}

// Name identifies the strategy in configuration and logs.
func (p *Pool) Name() string { return "pool" }

// Serve accepts connections until ctx is cancelled and hands them to
// the worker pool.
func (p *Pool) Serve(ctx context.Context, ln net.Listener, h Handler) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	queue := make(chan net.Conn, p.workers)

	// Tracks queued connections as well as the ones a worker is
	// serving, so the drain force-close reaches a connection no matter
	// where shutdown caught it.
	var activeMu sync.Mutex
	active := make(map[net.Conn]struct{})
	untrack := func(conn net.Conn) {
		activeMu.Lock()
		delete(active, conn)
		activeMu.Unlock()
	}

	var g errgroup.Group
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for conn := range queue {
				serveConn(conn, h, p.log, nil)
				untrack(conn)
			}
			return nil
		})
	}

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !shutdownErr(ctx, err) {
				acceptErr = err
			}
			break
		}

		activeMu.Lock()
		active[conn] = struct{}{}
		activeMu.Unlock()

		select {
		case queue <- conn:
		case <-ctx.Done():
			// Queue full during shutdown; never park the accept loop
			// on the send or close(queue) is unreachable.
			conn.Close()
			untrack(conn)
		}
	}

	// No further admission; workers drain what was already queued.
	close(queue)

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.drain):
		p.log.Warn("drain window elapsed, force-closing connections")
		activeMu.Lock()
		for conn := range active {
			conn.Close()
		}
		activeMu.Unlock()
		<-done
	}
	return acceptErr
}
