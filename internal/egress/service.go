// Package egress wires the flow hierarchy resolver, the store reader, the
// codec mapper and the playlist synthesizer into the playlist-serving
// surface. Two failure policies coexist deliberately: the whole-source entry
// point surfaces errors to its caller, while the per-flow entry points
// swallow them and emit a minimal valid playlist so polling players never
// receive a transport error mid-playback.
package egress

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/byomakase/time-addressable-media-store-tools/internal/codecmap"
	"github.com/byomakase/time-addressable-media-store-tools/internal/hierarchy"
	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/platform/metrics"
	"github.com/byomakase/time-addressable-media-store-tools/internal/playlist"
	"github.com/byomakase/time-addressable-media-store-tools/internal/store"
	"github.com/byomakase/time-addressable-media-store-tools/internal/timecode"
)

// DefaultSegmentWindow is the media playlist window when a flow carries no
// hls_segments tag.
const DefaultSegmentWindow = 150

// Service generates playlists from store state.
type Service struct {
	store          store.Reader
	codecs         *codecmap.Tables
	resolver       *hierarchy.Resolver
	log            *slog.Logger
	metrics        *metrics.Metrics
	segmentWindow  int
	mediaPathShape string
}

// NewService builds a Service. segmentWindow <= 0 selects
// DefaultSegmentWindow; m may be nil to disable metric recording.
func NewService(reader store.Reader, codecs *codecmap.Tables, resolver *hierarchy.Resolver, log *slog.Logger, m *metrics.Metrics, segmentWindow int) *Service {
	if segmentWindow <= 0 {
		segmentWindow = DefaultSegmentWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:          reader,
		codecs:         codecs,
		resolver:       resolver,
		log:            log,
		metrics:        m,
		segmentWindow:  segmentWindow,
		mediaPathShape: "/hls/flows/%s/segments/manifest.m3u8",
	}
}

// mediaPlaylistPath is where a variant entry points for a leaf flow's media
// playlist.
func (s *Service) mediaPlaylistPath(flowID string) string {
	return fmt.Sprintf(s.mediaPathShape, flowID)
}

// SourcePlaylist builds the variant playlist for every flow of a source.
// Hard-failure policy: any resolution or fetch error is returned to the
// caller.
func (s *Service) SourcePlaylist(ctx context.Context, sourceID string) (string, error) {
	resolved, err := s.resolver.ResolveSource(ctx, sourceID)
	if err != nil {
		return "", err
	}
	s.generated()
	return playlist.Variant(resolved, s.codecs, s.mediaPlaylistPath), nil
}

// FlowPlaylist builds the variant playlist for one flow's composition tree.
// Swallow policy: on any error a minimal empty playlist is returned and the
// error is logged.
func (s *Service) FlowPlaylist(ctx context.Context, flowID string) string {
	resolved, err := s.resolver.Resolve(ctx, flowID)
	if err != nil {
		s.swallow("flow playlist", flowID, err)
		return playlist.Empty()
	}
	s.generated()
	return playlist.Variant(resolved, s.codecs, s.mediaPlaylistPath)
}

// MediaPlaylist builds the media playlist for one leaf flow's segments.
// Swallow policy, like FlowPlaylist.
func (s *Service) MediaPlaylist(ctx context.Context, flowID string) string {
	out, err := s.mediaPlaylist(ctx, flowID)
	if err != nil {
		s.swallow("media playlist", flowID, err)
		return playlist.Empty()
	}
	s.generated()
	return out
}

func (s *Service) mediaPlaylist(ctx context.Context, flowID string) (string, error) {
	flow, err := s.store.GetFlow(ctx, flowID)
	if err != nil {
		return "", err
	}
	limit, unbounded := flow.SegmentWindow(s.segmentWindow)
	if unbounded {
		limit = 0
	}
	segments, err := s.store.ListSegments(ctx, flowID, limit, true)
	if err != nil {
		return "", err
	}
	// Newest-first from the store; play order is chronological.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	if len(segments) == 0 {
		return playlist.Empty(), nil
	}
	sequence, err := s.mediaSequence(ctx, flow, segments[0])
	if err != nil {
		return "", err
	}
	return playlist.Media(playlist.MediaInput{
		Flow:          flow,
		Segments:      segments,
		MediaSequence: sequence,
	}), nil
}

// mediaSequence implements the media-sequence rules: closed flows pin it at
// 1; ingesting flows derive it from the nominal segment duration when one is
// known, otherwise from a count of segments at or before the window start.
func (s *Service) mediaSequence(ctx context.Context, flow model.Flow, first model.Segment) (int64, error) {
	if !flow.Ingesting() {
		return 1, nil
	}
	if nominal := flow.NominalSegmentSeconds(); nominal > 0 {
		nominalNanos := int64(math.Round(nominal * 1e9))
		elapsed := first.TimeRange.Start.Sub(timecode.FromTime(flow.Created))
		return elapsed / nominalNanos, nil
	}
	count, err := s.store.CountSegmentsAtOrBefore(ctx, flow.ID, first.TimeRange.Start)
	if err != nil {
		return 0, err
	}
	return int64(count), nil
}

func (s *Service) swallow(what, flowID string, err error) {
	s.log.Warn("playlist generation failed, emitting empty playlist",
		slog.String("kind", what),
		slog.String("flow_id", flowID),
		slog.String("error", err.Error()))
	if s.metrics != nil {
		s.metrics.IncPlaylistErrorsSwallowed()
	}
}

func (s *Service) generated() {
	if s.metrics != nil {
		s.metrics.IncPlaylistsGenerated()
	}
}
