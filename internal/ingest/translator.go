// Package ingest converts externally produced HLS playlists into store
// records: the Translator turns media playlist entries into segment
// descriptors incrementally, and the Planner turns a variant playlist into
// the flow records those segments will belong to.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/grafov/m3u8"

	"github.com/byomakase/time-addressable-media-store-tools/internal/fetch"
	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/probe"
	"github.com/byomakase/time-addressable-media-store-tools/internal/store"
	"github.com/byomakase/time-addressable-media-store-tools/internal/timecode"
)

// ErrNotMediaManifest is returned when a variant (multi-rendition) playlist
// is supplied where a media playlist is required.
var ErrNotMediaManifest = errors.New("not a media manifest")

// writeBatchSize bounds the number of descriptors per store-write request.
const writeBatchSize = 10

// State is the resumption state carried between Translator invocations. It
// is an opaque value to the orchestrator: returned by one run, passed
// unchanged into the next, and discarded once the manifest is closed. A nil
// *State result from Run means the manifest reached ENDLIST.
type State struct {
	LastSequence  uint64             `json:"last_media_sequence"`
	LastTimestamp timecode.Timestamp `json:"last_timestamp"`
	// TargetDuration is the manifest's declared target duration in seconds,
	// a hint for the orchestrator's re-invocation delay. The Translator
	// itself never sleeps.
	TargetDuration float64 `json:"target_duration"`
}

// Job identifies one ingestion run: which flow the segments belong to, where
// the manifest lives, and the invocation epoch the orchestrator stamped on
// this run (part of the writer's deduplication key).
type Job struct {
	FlowID           string
	ManifestLocation string
	Epoch            time.Time
}

// Result reports what one invocation did.
type Result struct {
	Emitted int
	Next    *State
}

// MediaProber is the optional high-precision duration source. Failures are
// non-fatal: the nominal manifest-declared duration is kept instead.
type MediaProber interface {
	Probe(ctx context.Context, source string) (*probe.Result, error)
}

// Translator is the resumable HLS-to-store ingestion state machine. It holds
// no per-manifest state of its own; everything carried between runs lives in
// the caller-supplied State.
type Translator struct {
	fetcher *fetch.Fetcher
	writer  store.Writer
	prober  MediaProber
	log     *slog.Logger
}

// NewTranslator builds a Translator. prober may be nil to disable timerange
// refinement.
func NewTranslator(fetcher *fetch.Fetcher, writer store.Writer, prober MediaProber, log *slog.Logger) *Translator {
	if log == nil {
		log = slog.Default()
	}
	return &Translator{fetcher: fetcher, writer: writer, prober: prober, log: log}
}

// Run performs one invocation: fetch and parse the manifest, emit
// descriptors for every entry past the resumption point in batches, and
// return the next resumption state, or nil once the manifest is closed.
// Re-running with the same state against unchanged manifest content emits
// the same descriptors; at-most-once application is the writer's job.
func (t *Translator) Run(ctx context.Context, job Job, prev *State) (Result, error) {
	content, err := t.fetcher.Get(ctx, job.ManifestLocation)
	if err != nil {
		return Result{}, err
	}
	playlist, kind, err := m3u8.Decode(*bytes.NewBuffer(content), false)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", job.ManifestLocation, err)
	}
	if kind == m3u8.MASTER {
		return Result{}, fmt.Errorf("%w: %s", ErrNotMediaManifest, job.ManifestLocation)
	}
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotMediaManifest, job.ManifestLocation)
	}

	lastSequence := uint64(0)
	lastTimestamp := timecode.Timestamp{}
	if prev != nil {
		lastSequence = prev.LastSequence
		lastTimestamp = prev.LastTimestamp
	}

	emitted := 0
	batch := make([]model.SegmentDescriptor, 0, writeBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := t.writer.PutSegments(ctx, model.SegmentBatch{
			FlowID:       job.FlowID,
			LastSequence: lastSequence,
			Epoch:        job.Epoch,
			Segments:     batch,
		})
		if err != nil {
			return err
		}
		emitted += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, segment := range media.Segments {
		if segment == nil {
			break
		}
		if segment.SeqId <= lastSequence {
			continue
		}
		start := lastTimestamp
		end := start.Add(secondsToNanos(segment.Duration))
		uri := fetch.ResolveURI(job.ManifestLocation, segment.URI)
		if refined, ok := t.refineDuration(ctx, uri); ok {
			end = start.Add(refined)
		}
		descriptor := model.SegmentDescriptor{
			TimeRange: timecode.TimeRange{Start: start, End: end, Inclusivity: timecode.IncludeStart},
			URI:       uri,
		}
		if segment.Limit > 0 {
			descriptor.ByteRange = fmt.Sprintf("%d@%d", segment.Limit, segment.Offset)
		}
		batch = append(batch, descriptor)
		lastTimestamp = end
		lastSequence = segment.SeqId
		if len(batch) == writeBatchSize {
			if err := flush(); err != nil {
				return Result{Emitted: emitted}, err
			}
		}
	}
	if err := flush(); err != nil {
		return Result{Emitted: emitted}, err
	}

	if media.Closed {
		return Result{Emitted: emitted}, nil
	}
	return Result{
		Emitted: emitted,
		Next: &State{
			LastSequence:   lastSequence,
			LastTimestamp:  lastTimestamp,
			TargetDuration: media.TargetDuration,
		},
	}, nil
}

// refineDuration probes the segment media for a higher-precision duration.
// On any failure the nominal duration-derived range is silently kept;
// precision degrades but processing continues.
func (t *Translator) refineDuration(ctx context.Context, uri string) (int64, bool) {
	if t.prober == nil {
		return 0, false
	}
	result, err := t.prober.Probe(ctx, uri)
	if err != nil {
		t.log.Debug("segment probe failed, keeping nominal duration",
			slog.String("uri", uri), slog.String("error", err.Error()))
		return 0, false
	}
	duration, ok := result.Duration()
	if !ok {
		return 0, false
	}
	return secondsToNanos(duration), true
}

func secondsToNanos(seconds float64) int64 {
	return int64(math.Round(seconds * 1e9))
}
