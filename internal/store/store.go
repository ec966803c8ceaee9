// Package store defines the collaborator interfaces through which the core
// reads and writes flows and segments, plus two implementations: an HTTP
// client for a TAMS-style store API and an in-memory store for tests.
package store

import (
	"context"
	"errors"

	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/timecode"
)

// ErrUpstream wraps every network or store failure, including timeouts.
var ErrUpstream = errors.New("upstream fetch failed")

// ErrNotFound is returned when a flow does not exist in the store.
var ErrNotFound = errors.New("not found")

// Reader is the read side of the store.
type Reader interface {
	GetFlow(ctx context.Context, id string) (model.Flow, error)
	GetFlowsBySource(ctx context.Context, sourceID string) ([]model.Flow, error)
	// ListSegments returns up to limit segments of the flow. limit <= 0 means
	// all available. newestFirst orders by descending start timestamp.
	ListSegments(ctx context.Context, flowID string, limit int, newestFirst bool) ([]model.Segment, error)
	// CountSegmentsAtOrBefore counts the flow's segments whose start is at or
	// before ts.
	CountSegmentsAtOrBefore(ctx context.Context, flowID string, ts timecode.Timestamp) (int, error)
}

// Writer is the write side of the store. PutSegments must apply each batch
// at most once, keyed on the batch's FlowID, LastSequence and Epoch.
// PutFlow creates or replaces a flow record.
type Writer interface {
	PutFlow(ctx context.Context, flow model.Flow) error
	PutSegments(ctx context.Context, batch model.SegmentBatch) error
}
