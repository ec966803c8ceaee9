package store

import (
	"context"
	"testing"
	"time"

	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/timecode"
)

func memSegment(id string, startSec, endSec int64) model.Segment {
	return model.Segment{
		ObjectID: id,
		TimeRange: timecode.TimeRange{
			Start:       timecode.FromSeconds(startSec, 0),
			End:         timecode.FromSeconds(endSec, 0),
			Inclusivity: timecode.IncludeStart,
		},
		GetURLs: []model.GetURL{{URL: "https://cdn/" + id, Presigned: true}},
	}
}

func TestMemory_get_flow(t *testing.T) {
	m := NewMemory()
	m.AddFlow(model.Flow{ID: "f1", Format: model.FormatData})

	flow, err := m.GetFlow(context.Background(), "f1")
	if err != nil {
		t.Fatal(err)
	}
	if flow.ID != "f1" {
		t.Errorf("got %q", flow.ID)
	}
	if _, err := m.GetFlow(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing flow")
	}
	if m.FlowFetches["f1"] != 1 {
		t.Errorf("fetch count: got %d", m.FlowFetches["f1"])
	}
}

func TestMemory_flows_by_source_sorted(t *testing.T) {
	m := NewMemory()
	m.AddFlow(model.Flow{ID: "b", SourceID: "s1", Format: model.FormatData})
	m.AddFlow(model.Flow{ID: "a", SourceID: "s1", Format: model.FormatData})
	m.AddFlow(model.Flow{ID: "c", SourceID: "other", Format: model.FormatData})

	flows, err := m.GetFlowsBySource(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(flows) != 2 || flows[0].ID != "a" || flows[1].ID != "b" {
		t.Errorf("got %+v", flows)
	}
}

func TestMemory_list_segments_order_and_limit(t *testing.T) {
	m := NewMemory()
	m.AddSegments("f1", memSegment("s2", 6, 12), memSegment("s1", 0, 6), memSegment("s3", 12, 18))

	oldest, err := m.ListSegments(context.Background(), "f1", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(oldest) != 3 || oldest[0].ObjectID != "s1" || oldest[2].ObjectID != "s3" {
		t.Errorf("oldest-first: got %+v", oldest)
	}

	newest, err := m.ListSegments(context.Background(), "f1", 2, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(newest) != 2 || newest[0].ObjectID != "s3" || newest[1].ObjectID != "s2" {
		t.Errorf("newest-first limited: got %+v", newest)
	}
}

func TestMemory_count_at_or_before(t *testing.T) {
	m := NewMemory()
	m.AddSegments("f1", memSegment("s1", 0, 6), memSegment("s2", 6, 12), memSegment("s3", 12, 18))

	count, err := m.CountSegmentsAtOrBefore(context.Background(), "f1", timecode.FromSeconds(6, 0))
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("got %d", count)
	}
}

func TestMemory_put_segments_deduplicates(t *testing.T) {
	m := NewMemory()
	epoch := time.Now()
	batch := model.SegmentBatch{
		FlowID:       "f1",
		LastSequence: 10,
		Epoch:        epoch,
		Segments:     []model.SegmentDescriptor{{URI: "https://cdn/10.ts"}},
	}
	if err := m.PutSegments(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	if err := m.PutSegments(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	if got := len(m.Batches("f1")); got != 1 {
		t.Errorf("expected one applied batch, got %d", got)
	}

	batch.Epoch = epoch.Add(time.Minute)
	if err := m.PutSegments(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	if got := len(m.Batches("f1")); got != 2 {
		t.Errorf("new epoch should apply again, got %d", got)
	}
}

func TestMemory_put_flow(t *testing.T) {
	m := NewMemory()
	if err := m.PutFlow(context.Background(), model.Flow{ID: "f1", Format: model.FormatData}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetFlow(context.Background(), "f1"); err != nil {
		t.Errorf("flow not stored: %v", err)
	}
}
