package mux

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FrameMilestone is the processed-frame count at which every waiter on
// Milestone is released, exactly once.
const FrameMilestone = 100

// Threaded dedicates one goroutine to each accepted connection. A
// mutex-guarded counter tracks processed frames across all connections;
// when it first reaches FrameMilestone the milestone channel is closed,
// releasing all waiters. The counter and that notification are the only
// state shared between connection goroutines.
type Threaded struct {
	log   *zap.Logger
	drain time.Duration

	mu        sync.Mutex
	processed int
	milestone chan struct{}
}

// NewThreaded returns a thread-per-connection strategy with the given
// shutdown drain window.
func NewThreaded(log *zap.Logger, drain time.Duration) *Threaded {
	return &Threaded{log: log, drain: drain, milestone: make(chan struct{})}
}

// Name identifies the strategy in configuration and logs.
func (t *Threaded) Name() string { return "threaded" }

// Processed returns the number of frames handled so far.
func (t *Threaded) Processed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}

// Milestone returns a channel closed when the processed-frame counter
// first reaches FrameMilestone.
func (t *Threaded) Milestone() <-chan struct{} {
	return t.milestone
}

func (t *Threaded) countFrame() {
	t.mu.Lock()
	t.processed++
	if t.processed == FrameMilestone {
		close(t.milestone)
		t.log.Info("frame milestone reached", zap.Int("frames", t.processed))
	}
	t.mu.Unlock()
}

// Serve accepts connections until ctx is cancelled, handling each on
// its own goroutine, then drains in-flight connections within the drain
// window before force-closing the stragglers.
func (t *Threaded) Serve(ctx context.Context, ln net.Listener, h Handler) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	var activeMu sync.Mutex
	active := make(map[net.Conn]struct{})

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

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(conn, h, t.log, t.countFrame)
			activeMu.Lock()
			delete(active, conn)
			activeMu.Unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(t.drain):
		t.log.Warn("drain window elapsed, force-closing connections")
		activeMu.Lock()
		for conn := range active {
			conn.Close()
		}
		activeMu.Unlock()
		<-done
	}
	return acceptErr
}
