package playlist

import (
	"strings"
	"testing"

	"github.com/byomakase/time-addressable-media-store-tools/internal/codecmap"
	"github.com/byomakase/time-addressable-media-store-tools/internal/hierarchy"
	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
)

const variantMappings = `
codecs:
  - tams: video/h264
    hls: avc1
  - tams: audio/aac
    hls: mp4a
containers:
  mpegts: video/mp2t
`

func variantTables(t *testing.T) *codecmap.Tables {
	t.Helper()
	tables, err := codecmap.Parse([]byte(variantMappings))
	if err != nil {
		t.Fatal(err)
	}
	return tables
}

func mediaPath(flowID string) string {
	return "/hls/flows/" + flowID + "/segments/manifest.m3u8"
}

func testVideoFlow(id string, maxRate int64) model.Flow {
	return model.Flow{
		ID:         id,
		Format:     model.FormatVideo,
		Codec:      "video/h264",
		MaxBitRate: maxRate,
		AvgBitRate: maxRate - 500000,
		Essence: model.EssenceParameters{
			FrameWidth:  1920,
			FrameHeight: 1080,
			FrameRate:   &model.Fraction{Numerator: 25, Denominator: 1},
		},
	}
}

func testAudioFlow(id, description string) model.Flow {
	return model.Flow{
		ID:          id,
		Format:      model.FormatAudio,
		Codec:       "audio/aac",
		Description: description,
		MaxBitRate:  128000,
		AvgBitRate:  128000,
		Essence:     model.EssenceParameters{Channels: 2, SampleRate: 48000},
	}
}

func TestVariant_orders_video_by_bitrate(t *testing.T) {
	resolved := &hierarchy.Resolved{
		Video: []model.Flow{testVideoFlow("low", 2000000), testVideoFlow("high", 5000000)},
	}
	out := Variant(resolved, variantTables(t), mediaPath)

	if !strings.Contains(out, "#EXT-X-INDEPENDENT-SEGMENTS\n") {
		t.Errorf("expected independent segments: %s", out)
	}
	highAt := strings.Index(out, mediaPath("high"))
	lowAt := strings.Index(out, mediaPath("low"))
	if highAt < 0 || lowAt < 0 || highAt > lowAt {
		t.Errorf("expected highest bitrate first: %s", out)
	}
	if !strings.Contains(out, "BANDWIDTH=5000000,AVERAGE-BANDWIDTH=4500000") {
		t.Errorf("bandwidth attributes: %s", out)
	}
	if !strings.Contains(out, "RESOLUTION=1920x1080,FRAME-RATE=25.000") {
		t.Errorf("resolution attributes: %s", out)
	}
	if !strings.Contains(out, `CODECS="avc1.64001f"`) {
		t.Errorf("codecs attribute: %s", out)
	}
}

func TestVariant_video_with_audio_group(t *testing.T) {
	resolved := &hierarchy.Resolved{
		Video: []model.Flow{testVideoFlow("v1", 5000000)},
		Audio: []model.Flow{testAudioFlow("a1", "English"), testAudioFlow("a2", "French")},
	}
	out := Variant(resolved, variantTables(t), mediaPath)

	if got := strings.Count(out, "#EXT-X-MEDIA:TYPE=AUDIO"); got != 2 {
		t.Errorf("expected two audio renditions, got %d: %s", got, out)
	}
	if !strings.Contains(out, `NAME="English",DEFAULT=YES,AUTOSELECT=YES`) {
		t.Errorf("first rendition should be default: %s", out)
	}
	if !strings.Contains(out, `NAME="French",DEFAULT=NO,AUTOSELECT=YES`) {
		t.Errorf("second rendition should not be default: %s", out)
	}
	if !strings.Contains(out, `CHANNELS="2"`) {
		t.Errorf("channels attribute: %s", out)
	}
	if !strings.Contains(out, `CODECS="avc1.64001f,mp4a.40.2"`) {
		t.Errorf("combined codecs: %s", out)
	}
	if !strings.Contains(out, `,AUDIO="audio"`) {
		t.Errorf("stream entry should reference the audio group: %s", out)
	}
}

func TestVariant_rendition_tags_override_attributes(t *testing.T) {
	audio := testAudioFlow("a1", "fallback name")
	audio.Tags = map[string]string{
		tagName:       "Director commentary",
		tagLanguage:   "en",
		tagDefault:    "NO",
		tagAutoselect: "NO",
	}
	resolved := &hierarchy.Resolved{
		Video: []model.Flow{testVideoFlow("v1", 5000000)},
		Audio: []model.Flow{audio},
	}
	out := Variant(resolved, variantTables(t), mediaPath)

	if !strings.Contains(out, `NAME="Director commentary",LANGUAGE="en",DEFAULT=NO,AUTOSELECT=NO`) {
		t.Errorf("tag overrides not applied: %s", out)
	}
}

func TestVariant_subtitles_group(t *testing.T) {
	sub := model.Flow{
		ID:          "s1",
		Format:      model.FormatData,
		Description: "English subtitles",
		Essence:     model.EssenceParameters{DataType: model.SubtitleDataType},
	}
	resolved := &hierarchy.Resolved{
		Video:    []model.Flow{testVideoFlow("v1", 5000000)},
		Subtitle: []model.Flow{sub},
	}
	out := Variant(resolved, variantTables(t), mediaPath)

	if !strings.Contains(out, `#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs"`) {
		t.Errorf("expected subtitles rendition: %s", out)
	}
	if !strings.Contains(out, `,SUBTITLES="subs"`) {
		t.Errorf("stream entry should reference the subtitles group: %s", out)
	}
}

func TestVariant_audio_only_degrade(t *testing.T) {
	resolved := &hierarchy.Resolved{
		Audio: []model.Flow{testAudioFlow("a1", "English")},
	}
	out := Variant(resolved, variantTables(t), mediaPath)

	if strings.Contains(out, "#EXT-X-MEDIA:") {
		t.Errorf("audio-only playlist should use stream entries: %s", out)
	}
	if !strings.Contains(out, `#EXT-X-STREAM-INF:BANDWIDTH=128000,AVERAGE-BANDWIDTH=128000,CODECS="mp4a.40.2"`) {
		t.Errorf("audio stream entry: %s", out)
	}
	if !strings.Contains(out, mediaPath("a1")) {
		t.Errorf("audio media playlist reference: %s", out)
	}
}

func TestVariant_empty(t *testing.T) {
	out := Variant(&hierarchy.Resolved{}, variantTables(t), mediaPath)
	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Errorf("got %q", out)
	}
	if strings.Contains(out, "#EXT-X-STREAM-INF") {
		t.Errorf("no flows should mean no entries: %s", out)
	}
}
