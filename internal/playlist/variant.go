package playlist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/byomakase/time-addressable-media-store-tools/internal/codecmap"
	"github.com/byomakase/time-addressable-media-store-tools/internal/hierarchy"
	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
)

const (
	audioGroupID    = "audio"
	subtitleGroupID = "subs"
)

// Alternate-rendition tags a flow may carry to override the emitted
// EXT-X-MEDIA attributes.
const (
	tagName       = "hls_name"
	tagLanguage   = "hls_language"
	tagDefault    = "hls_default"
	tagAutoselect = "hls_autoselect"
	tagForced     = "hls_forced"
)

// Variant builds a variant (multi-rendition) playlist from resolved leaf
// flows. uriFor maps a flow id to the media playlist location the entry
// should reference. Video entries are ordered by maximum bit rate
// descending; equal-bitrate entries keep their resolution order. With no
// video leaves the playlist degrades to audio-only stream entries.
func Variant(resolved *hierarchy.Resolved, codecs *codecmap.Tables, uriFor func(flowID string) string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", version)
	b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")

	if len(resolved.Video) == 0 {
		for _, flow := range resolved.Audio {
			fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,AVERAGE-BANDWIDTH=%d,CODECS=%q\n",
				flow.MaxBitRate, flow.AvgBitRate, codecs.ToHLS(flow))
			b.WriteString(uriFor(flow.ID))
			b.WriteString("\n")
		}
		return b.String()
	}

	for i, flow := range resolved.Subtitle {
		writeAlternative(&b, flow, i, "SUBTITLES", subtitleGroupID, "", uriFor)
	}
	var firstAudioCodec string
	for i, flow := range resolved.Audio {
		codec := codecs.ToHLS(flow)
		if i == 0 {
			firstAudioCodec = codec
		}
		writeAlternative(&b, flow, i, "AUDIO", audioGroupID, codec, uriFor)
	}

	video := make([]model.Flow, len(resolved.Video))
	copy(video, resolved.Video)
	sort.SliceStable(video, func(i, j int) bool {
		return video[i].MaxBitRate > video[j].MaxBitRate
	})
	for _, flow := range video {
		codec := codecs.ToHLS(flow)
		if firstAudioCodec != "" {
			codec += "," + firstAudioCodec
		}
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,AVERAGE-BANDWIDTH=%d,CODECS=%q,RESOLUTION=%dx%d,FRAME-RATE=%.3f",
			flow.MaxBitRate, flow.AvgBitRate, codec,
			flow.Essence.FrameWidth, flow.Essence.FrameHeight,
			frameRate(flow))
		if len(resolved.Audio) > 0 {
			fmt.Fprintf(&b, ",AUDIO=%q", audioGroupID)
		}
		if len(resolved.Subtitle) > 0 {
			fmt.Fprintf(&b, ",SUBTITLES=%q", subtitleGroupID)
		}
		b.WriteString("\n")
		b.WriteString(uriFor(flow.ID))
		b.WriteString("\n")
	}
	return b.String()
}

// writeAlternative emits one EXT-X-MEDIA line. The first flow of a group is
// the default unless tagged otherwise; autoselect defaults to YES.
func writeAlternative(b *strings.Builder, flow model.Flow, position int, mediaType, groupID, codec string, uriFor func(string) string) {
	name := flow.Tag(tagName)
	if name == "" {
		name = flow.Description
	}
	def := flow.Tag(tagDefault)
	if def == "" {
		if position == 0 {
			def = "YES"
		} else {
			def = "NO"
		}
	}
	autoselect := flow.Tag(tagAutoselect)
	if autoselect == "" {
		autoselect = "YES"
	}

	fmt.Fprintf(b, "#EXT-X-MEDIA:TYPE=%s,GROUP-ID=%q,NAME=%q", mediaType, groupID, name)
	if language := flow.Tag(tagLanguage); language != "" {
		fmt.Fprintf(b, ",LANGUAGE=%q", language)
	}
	fmt.Fprintf(b, ",DEFAULT=%s,AUTOSELECT=%s", def, autoselect)
	if forced := flow.Tag(tagForced); forced != "" {
		fmt.Fprintf(b, ",FORCED=%s", forced)
	}
	if mediaType == "AUDIO" {
		fmt.Fprintf(b, ",CHANNELS=%q", fmt.Sprint(flow.Essence.Channels))
	}
	if codec != "" {
		fmt.Fprintf(b, ",CODECS=%q", codec)
	}
	fmt.Fprintf(b, ",URI=%q\n", uriFor(flow.ID))
}

func frameRate(flow model.Flow) float64 {
	if flow.Essence.FrameRate == nil {
		return 0
	}
	return flow.Essence.FrameRate.Float()
}
