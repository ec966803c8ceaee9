package playlist

import (
	"strings"
	"testing"
	"time"

	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/timecode"
)

func playlistSegment(uri string, startSec, endSec int64, offset timecode.Timestamp) model.Segment {
	return model.Segment{
		ObjectID: uri,
		TimeRange: timecode.TimeRange{
			Start:       timecode.FromSeconds(startSec, 0),
			End:         timecode.FromSeconds(endSec, 0),
			Inclusivity: timecode.IncludeStart,
		},
		TSOffset: offset,
		GetURLs:  []model.GetURL{{URL: uri, Presigned: true}},
	}
}

func TestMedia_vod_playlist(t *testing.T) {
	flow := model.Flow{
		ID:              "f1",
		Format:          model.FormatVideo,
		SegmentDuration: &model.Fraction{Numerator: 6, Denominator: 1},
	}
	out := Media(MediaInput{
		Flow: flow,
		Segments: []model.Segment{
			playlistSegment("https://cdn/1.ts", 0, 6, timecode.Timestamp{}),
			playlistSegment("https://cdn/2.ts", 6, 12, timecode.Timestamp{}),
			playlistSegment("https://cdn/3.ts", 12, 18, timecode.Timestamp{}),
		},
		MediaSequence: 1,
	})

	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Error("expected #EXTM3U header")
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:6\n") {
		t.Errorf("expected target duration 6: %s", out)
	}
	if !strings.Contains(out, "#EXT-X-MEDIA-SEQUENCE:1\n") {
		t.Errorf("expected media sequence 1: %s", out)
	}
	if !strings.Contains(out, "#EXT-X-PLAYLIST-TYPE:VOD\n") {
		t.Errorf("expected VOD type: %s", out)
	}
	if got := strings.Count(out, "#EXTINF:6,\n"); got != 3 {
		t.Errorf("expected three EXTINF:6 entries, got %d: %s", got, out)
	}
	if !strings.HasSuffix(out, "#EXT-X-ENDLIST\n") {
		t.Errorf("expected trailing ENDLIST: %s", out)
	}
	if strings.Contains(out, "#EXT-X-DISCONTINUITY") {
		t.Error("uniform offsets should not produce discontinuities")
	}
}

func TestMedia_event_playlist_while_ingesting(t *testing.T) {
	flow := model.Flow{
		ID:   "f1",
		Tags: map[string]string{model.TagFlowStatus: "ingesting"},
	}
	out := Media(MediaInput{
		Flow:          flow,
		Segments:      []model.Segment{playlistSegment("https://cdn/1.ts", 0, 6, timecode.Timestamp{})},
		MediaSequence: 4,
	})

	if !strings.Contains(out, "#EXT-X-PLAYLIST-TYPE:EVENT\n") {
		t.Errorf("expected EVENT type: %s", out)
	}
	if !strings.Contains(out, "#EXT-X-MEDIA-SEQUENCE:4\n") {
		t.Errorf("expected media sequence 4: %s", out)
	}
	if strings.Contains(out, "#EXT-X-ENDLIST") {
		t.Error("ingesting flow should not end the playlist")
	}
}

func TestMedia_program_date_time(t *testing.T) {
	wall := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seg := playlistSegment("https://cdn/1.ts", 0, 6, timecode.Timestamp{})
	seg.TimeRange.Start = timecode.FromTime(wall)
	seg.TimeRange.End = timecode.FromTime(wall.Add(6 * time.Second))

	out := Media(MediaInput{Flow: model.Flow{ID: "f1"}, Segments: []model.Segment{seg}, MediaSequence: 1})
	if !strings.Contains(out, "#EXT-X-PROGRAM-DATE-TIME:2024-03-01T12:00:00.000+00:00\n") {
		t.Errorf("program date time: %s", out)
	}
}

func TestMedia_discontinuity_on_offset_change(t *testing.T) {
	out := Media(MediaInput{
		Flow: model.Flow{ID: "f1"},
		Segments: []model.Segment{
			playlistSegment("https://cdn/1.ts", 0, 6, timecode.FromSeconds(10, 0)),
			playlistSegment("https://cdn/2.ts", 6, 12, timecode.FromSeconds(10, 0)),
			playlistSegment("https://cdn/3.ts", 12, 18, timecode.FromSeconds(20, 0)),
		},
		MediaSequence: 1,
	})

	if got := strings.Count(out, "#EXT-X-DISCONTINUITY\n"); got != 1 {
		t.Errorf("expected one discontinuity, got %d: %s", got, out)
	}
	marker := strings.Index(out, "#EXT-X-DISCONTINUITY")
	third := strings.Index(out, "https://cdn/3.ts")
	second := strings.Index(out, "https://cdn/2.ts")
	if marker < second || marker > third {
		t.Errorf("discontinuity misplaced: %s", out)
	}
}

func TestMedia_first_segment_never_discontinuous(t *testing.T) {
	out := Media(MediaInput{
		Flow:          model.Flow{ID: "f1"},
		Segments:      []model.Segment{playlistSegment("https://cdn/1.ts", 0, 6, timecode.FromSeconds(99, 0))},
		MediaSequence: 1,
	})
	if strings.Contains(out, "#EXT-X-DISCONTINUITY") {
		t.Errorf("first segment must not be discontinuous: %s", out)
	}
}

func TestMedia_skips_segments_without_direct_url(t *testing.T) {
	noURL := playlistSegment("https://cdn/2.ts", 6, 12, timecode.Timestamp{})
	noURL.GetURLs = []model.GetURL{{URL: "https://store/auth/2.ts", Label: "authorized"}}

	out := Media(MediaInput{
		Flow: model.Flow{ID: "f1"},
		Segments: []model.Segment{
			playlistSegment("https://cdn/1.ts", 0, 6, timecode.Timestamp{}),
			noURL,
			playlistSegment("https://cdn/3.ts", 12, 18, timecode.Timestamp{}),
		},
		MediaSequence: 1,
	})

	if strings.Contains(out, "2.ts") {
		t.Errorf("segment without direct URL should be skipped: %s", out)
	}
	if got := strings.Count(out, "#EXTINF"); got != 2 {
		t.Errorf("expected two entries, got %d", got)
	}
}

func TestMedia_fractional_duration_formatting(t *testing.T) {
	seg := playlistSegment("https://cdn/1.ts", 0, 0, timecode.Timestamp{})
	seg.TimeRange.End = timecode.FromNanoseconds(2_002_000_000)

	out := Media(MediaInput{Flow: model.Flow{ID: "f1"}, Segments: []model.Segment{seg}, MediaSequence: 1})
	if !strings.Contains(out, "#EXTINF:2.002,\n") {
		t.Errorf("expected EXTINF 2.002: %s", out)
	}
}

func TestMedia_empty_input(t *testing.T) {
	out := Media(MediaInput{Flow: model.Flow{ID: "f1"}})
	if out != Empty() {
		t.Errorf("expected minimal playlist, got %q", out)
	}
}

func TestEmpty(t *testing.T) {
	out := Empty()
	if !strings.HasPrefix(out, "#EXTM3U\n") || !strings.Contains(out, "#EXT-X-VERSION:") {
		t.Errorf("got %q", out)
	}
}
