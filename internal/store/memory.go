package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/timecode"
)

// Memory is a concurrency-safe in-memory store implementing Reader and
// Writer. It backs tests and local development.
type Memory struct {
	mu       sync.Mutex
	flows    map[string]model.Flow
	segments map[string][]model.Segment
	batches  map[string][]model.SegmentBatch

	// FlowFetches counts GetFlow calls per flow id, for asserting that
	// hierarchy resolution never fetches the same flow twice.
	FlowFetches map[string]int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		flows:       map[string]model.Flow{},
		segments:    map[string][]model.Segment{},
		batches:     map[string][]model.SegmentBatch{},
		FlowFetches: map[string]int{},
	}
}

// AddFlow registers a flow record.
func (m *Memory) AddFlow(flow model.Flow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[flow.ID] = flow
}

// AddSegments appends ready-made segments to a flow's timeline, kept sorted
// by start timestamp.
func (m *Memory) AddSegments(flowID string, segments ...model.Segment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := append(m.segments[flowID], segments...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].TimeRange.Start.Before(all[j].TimeRange.Start)
	})
	m.segments[flowID] = all
}

// GetFlow implements Reader.
func (m *Memory) GetFlow(ctx context.Context, id string) (model.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlowFetches[id]++
	flow, ok := m.flows[id]
	if !ok {
		return model.Flow{}, fmt.Errorf("%w: flow %s", ErrNotFound, id)
	}
	return flow, nil
}

// GetFlowsBySource implements Reader, returning flows in insertion-stable
// order by id for deterministic results.
func (m *Memory) GetFlowsBySource(ctx context.Context, sourceID string) ([]model.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, flow := range m.flows {
		if flow.SourceID == sourceID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	flows := make([]model.Flow, 0, len(ids))
	for _, id := range ids {
		flows = append(flows, m.flows[id])
	}
	return flows, nil
}

// ListSegments implements Reader.
func (m *Memory) ListSegments(ctx context.Context, flowID string, limit int, newestFirst bool) ([]model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.segments[flowID]
	out := make([]model.Segment, len(stored))
	copy(out, stored)
	if newestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountSegmentsAtOrBefore implements Reader.
func (m *Memory) CountSegmentsAtOrBefore(ctx context.Context, flowID string, ts timecode.Timestamp) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, segment := range m.segments[flowID] {
		if !segment.TimeRange.Start.After(ts) {
			count++
		}
	}
	return count, nil
}

// PutFlow implements Writer.
func (m *Memory) PutFlow(ctx context.Context, flow model.Flow) error {
	m.AddFlow(flow)
	return nil
}

// PutSegments implements Writer, recording each batch once per dedup key.
func (m *Memory) PutSegments(ctx context.Context, batch model.SegmentBatch) error {
	if len(batch.Segments) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%d/%d", batch.FlowID, batch.LastSequence, batch.Epoch.UnixNano())
	for _, seen := range m.batches[key] {
		if len(seen.Segments) == len(batch.Segments) {
			return nil
		}
	}
	m.batches[key] = append(m.batches[key], batch)
	return nil
}

// Batches returns every batch written for a flow, in arrival order.
func (m *Memory) Batches(flowID string) []model.SegmentBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SegmentBatch
	for _, batches := range m.batches {
		for _, batch := range batches {
			if batch.FlowID == flowID {
				out = append(out, batch)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastSequence < out[j].LastSequence
	})
	return out
}

// Descriptors flattens every written batch for a flow into one ordered slice.
func (m *Memory) Descriptors(flowID string) []model.SegmentDescriptor {
	var out []model.SegmentDescriptor
	for _, batch := range m.Batches(flowID) {
		out = append(out, batch.Segments...)
	}
	return out
}
