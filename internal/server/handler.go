// Package server dispatches decoded command frames: UPLOAD frames feed
// the record store, QUERY frames run the filter engine against the
// records known so far.
package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/logferry/logferry/internal/filter"
	"github.com/logferry/logferry/internal/store"
	"github.com/logferry/logferry/internal/wire"
)

// Handler is the record sink and query evaluator behind the
// multiplexer. It is safe for use by concurrent connections; the store
// carries its own locking.
type Handler struct {
	store *store.RecordStore
	log   *zap.Logger
}

// NewHandler returns a Handler feeding st.
func NewHandler(st *store.RecordStore, log *zap.Logger) *Handler {
	return &Handler{store: st, log: log}
}

// Handle processes one frame and returns the encoded response body.
func (h *Handler) Handle(f wire.Frame) ([]byte, error) {
	switch f.Command {
	case wire.CmdUpload:
		return h.handleUpload(f), nil
	case wire.CmdQuery:
		return h.handleQuery(f), nil
	default:
		return nil, fmt.Errorf("%w: command 0x%04x", wire.ErrMalformed, f.Command)
	}
}

// handleUpload stores the valid records from the frame and acknowledges
// how many were accepted. An invalid record is dropped with a
// diagnostic; the rest of the batch continues.
func (h *Handler) handleUpload(f wire.Frame) []byte {
	valid := f.Entries[:0:0]
	for i, e := range f.Entries {
		if err := e.Validate(); err != nil {
			h.log.Warn("dropping invalid record",
				zap.Int("record", i),
				zap.Error(err))
			continue
		}
		valid = append(valid, e)
	}
	h.store.Add(valid...)
	h.log.Info("records stored",
		zap.Int("accepted", len(valid)),
		zap.Int("dropped", len(f.Entries)-len(valid)),
		zap.Int("total", h.store.Len()))
	return wire.EncodeCount(uint32(len(valid)))
}

// handleQuery evaluates the filter string against the known record set.
// The wire format has no error frame, so a query that fails to parse or
// validate yields an empty result set plus one warning here.
func (h *Handler) handleQuery(f wire.Frame) []byte {
	q, err := filter.Parse(f.Query)
	if err != nil {
		h.log.Warn("rejecting query",
			zap.String("query", f.Query),
			zap.Error(err))
		return wire.EncodeResultSet(nil)
	}

	results, err := filter.Apply(q, h.store.Snapshot())
	if err != nil {
		h.log.Warn("rejecting query",
			zap.String("query", f.Query),
			zap.Error(err))
		return wire.EncodeResultSet(nil)
	}

	h.log.Info("query answered",
		zap.String("query", f.Query),
		zap.Int("results", len(results)))
	return wire.EncodeResultSet(results)
}
