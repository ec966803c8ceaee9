package model

import (
	"fmt"
	"time"

	"github.com/byomakase/time-addressable-media-store-tools/internal/timecode"
)

// PresignedLabel marks an access location whose URL can be handed directly to
// a player without further authorization.
const PresignedLabel = "s3_presigned"

// GetURL is one access location of a segment, tagged by label.
type GetURL struct {
	URL       string `json:"url"`
	Label     string `json:"label,omitempty"`
	Presigned bool   `json:"presigned,omitempty"`
}

// Segment is one time-ranged, independently fetchable unit of a flow's media.
// Segments are immutable once created.
type Segment struct {
	ObjectID     string             `json:"object_id"`
	TimeRange    timecode.TimeRange `json:"timerange"`
	TSOffset     timecode.Timestamp `json:"ts_offset,omitempty"`
	SampleOffset int64              `json:"sample_offset,omitempty"`
	SampleCount  int64              `json:"sample_count,omitempty"`
	GetURLs      []GetURL           `json:"get_urls,omitempty"`
}

// DirectURL returns the first access location a player can use without
// further authorization, in input order.
func (s Segment) DirectURL() (string, bool) {
	for _, u := range s.GetURLs {
		if u.Presigned || u.Label == PresignedLabel {
			return u.URL, true
		}
	}
	return "", false
}

// Validate checks the segment's required fields.
func (s Segment) Validate() error {
	if s.ObjectID == "" {
		return fmt.Errorf("%w: segment missing object_id", ErrValidation)
	}
	if s.TimeRange.End.Before(s.TimeRange.Start) {
		return fmt.Errorf("%w: segment range %s ends before it starts", ErrValidation, s.TimeRange)
	}
	return nil
}

// SegmentDescriptor is what ingestion emits for each manifest entry: where
// the media lives and which part of the flow timeline it covers. ByteRange is
// carried through opaquely from the manifest when present ("length@offset").
type SegmentDescriptor struct {
	TimeRange timecode.TimeRange `json:"timerange"`
	URI       string             `json:"uri"`
	ByteRange string             `json:"byterange,omitempty"`
}

// SegmentBatch is one store-write request. FlowID, LastSequence and Epoch
// together form the deduplication key the writer uses for at-most-once
// application; Epoch is the invocation epoch supplied by the caller that
// scheduled the ingestion run.
type SegmentBatch struct {
	FlowID       string              `json:"flow_id"`
	LastSequence uint64              `json:"last_media_sequence"`
	Epoch        time.Time           `json:"invocation_epoch"`
	Segments     []SegmentDescriptor `json:"segments"`
}
