// Package playlist synthesizes HLS variant and media playlist text from
// resolved flows and store segments. Field formatting is part of the wire
// contract: players parse several of these values positionally, so the byte
// layout here is deliberate.
package playlist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/timecode"
)

const version = 4

// Empty returns the minimal syntactically valid playlist, used by the
// swallow-errors egress policy so polling players never see a transport
// error mid-playback.
func Empty() string {
	return fmt.Sprintf("#EXTM3U\n#EXT-X-VERSION:%d\n", version)
}

// MediaInput carries everything the media playlist needs. Segments must be
// in chronological order; MediaSequence is computed by the caller (it may
// need a store query).
type MediaInput struct {
	Flow          model.Flow
	Segments      []model.Segment
	MediaSequence int64
}

// Media builds a media playlist for one leaf flow. Segments without a
// direct-access URL are skipped rather than failing the whole playlist.
func Media(in MediaInput) string {
	if len(in.Segments) == 0 {
		return Empty()
	}
	ingesting := in.Flow.Ingesting()
	first := in.Segments[0]

	target := in.Flow.NominalSegmentSeconds()
	if target <= 0 {
		target = first.TimeRange.LengthSeconds()
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", version)
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%s\n", formatSeconds(target))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", in.MediaSequence)
	fmt.Fprintf(&b, "#EXT-X-PROGRAM-DATE-TIME:%s\n", programDateTime(first.TimeRange.Start))
	if ingesting {
		b.WriteString("#EXT-X-PLAYLIST-TYPE:EVENT\n")
	} else {
		b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	}

	emitted := 0
	var prevOffset string
	for _, segment := range in.Segments {
		uri, ok := segment.DirectURL()
		if !ok {
			continue
		}
		offset := segment.TSOffset.String()
		if emitted > 0 && offset != prevOffset {
			b.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		fmt.Fprintf(&b, "#EXTINF:%s,\n", formatSeconds(segment.TimeRange.LengthSeconds()))
		b.WriteString(uri)
		b.WriteString("\n")
		prevOffset = offset
		emitted++
	}

	if !ingesting {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

// formatSeconds renders a duration with no trailing zeros, so a whole
// 6-second segment reads "6" and a 2.002s one reads "2.002".
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// programDateTime renders a timestamp as an absolute UTC wall-clock string
// at millisecond precision.
func programDateTime(ts timecode.Timestamp) string {
	return ts.Time().UTC().Format("2006-01-02T15:04:05.000") + "+00:00"
}
