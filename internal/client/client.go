// Package client implements the uploading/querying side of the
// exchange: it drains the pending-upload queue to the server, submits
// filter queries, filters locally cached views, and records every
// filter/query action on the undoable history stack.
package client

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/logferry/logferry/internal/filter"
	"github.com/logferry/logferry/internal/history"
	"github.com/logferry/logferry/internal/model"
	"github.com/logferry/logferry/internal/security"
	"github.com/logferry/logferry/internal/store"
	"github.com/logferry/logferry/internal/wire"
)

// Client is one session against a server. It owns its upload queue and
// history stack exclusively; sessions are never shared.
type Client struct {
	conn    net.Conn
	log     *zap.Logger
	history *history.Stack
}

// Dial connects to addr. sec may be nil or disabled, in which case the
// connection stays in the clear. hist may be nil for sessions that only
// upload.
func Dial(ctx context.Context, addr string, sec *security.Config, hist *history.Stack, log *zap.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{conn: sec.WrapConn(conn), log: log, history: hist}, nil
}

// NewLocal returns a session with no transport, for operations that
// only touch the local history stack (local filtering and undo).
func NewLocal(hist *history.Stack, log *zap.Logger) *Client {
	return &Client{history: hist, log: log}
}

// Upload drains queue in accessTime order, sends one UPLOAD frame, and
// returns how many records the server accepted.
func (c *Client) Upload(queue *store.UploadQueue) (uint32, error) {
	if c.conn == nil {
		return 0, fmt.Errorf("client: no transport for upload")
	}
	entries := queue.DequeueAll()
	if _, err := c.conn.Write(wire.EncodeUpload(entries)); err != nil {
		return 0, fmt.Errorf("client: send upload: %w", err)
	}
	accepted, err := wire.ReadCount(c.conn)
	if err != nil {
		return 0, fmt.Errorf("client: read upload ack: %w", err)
	}
	c.log.Info("upload complete",
		zap.Int("sent", len(entries)),
		zap.Uint32("accepted", accepted))
	return accepted, nil
}

// Query submits the filter string to the server and pushes the result
// set onto the history stack. The query is validated locally first so a
// malformed filter is rejected before any traffic is sent.
func (c *Client) Query(query string) ([]model.LogEntry, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("client: no transport for remote query")
	}
	q, err := filter.Parse(query)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if _, err := c.conn.Write(wire.EncodeQuery(query)); err != nil {
		return nil, fmt.Errorf("client: send query: %w", err)
	}
	results, err := wire.ReadResultSet(c.conn)
	if err != nil {
		return nil, fmt.Errorf("client: read query results: %w", err)
	}

	if c.history != nil {
		if err := c.history.Push(history.Frame{Results: results, Filter: query}); err != nil {
			return nil, err
		}
	}
	c.log.Info("query complete",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}

// FilterLocal applies the filter string to the current view without
// touching the server and pushes the narrowed view onto the history
// stack.
func (c *Client) FilterLocal(query string) ([]model.LogEntry, error) {
	if c.history == nil {
		return nil, fmt.Errorf("client: no history stack for local filtering")
	}

	q, err := filter.Parse(query)
	if err != nil {
		return nil, err
	}
	results, err := filter.Apply(q, c.history.CurrentView())
	if err != nil {
		return nil, err
	}

	if err := c.history.Push(history.Frame{Results: results, Filter: query}); err != nil {
		return nil, err
	}
	return results, nil
}

// Undo pops the most recent filter/query action and returns the view it
// restores: the prior frame's result set, or the empty view when
// nothing remains. An empty stack surfaces history.ErrNoHistory.
func (c *Client) Undo() ([]model.LogEntry, error) {
	if c.history == nil {
		return nil, history.ErrNoHistory
	}
	popped, err := c.history.Pop()
	if err != nil {
		return nil, err
	}
	c.log.Info("undid filter", zap.String("query", popped.Filter))
	return c.history.CurrentView(), nil
}

// Close closes the transport. The history stack, if any, stays open for
// the caller.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
