package probe

import (
	"encoding/json"
	"testing"
)

const ffprobeOutput = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 6, "sample_rate": "44100", "bit_rate": "192000"}
  ],
  "format": {"format_name": "mpegts", "duration": "6.006000"}
}`

func TestResult_parsing(t *testing.T) {
	var result Result
	if err := json.Unmarshal([]byte(ffprobeOutput), &result); err != nil {
		t.Fatal(err)
	}
	if result.Format.FormatName != "mpegts" {
		t.Errorf("format: got %q", result.Format.FormatName)
	}
	d, ok := result.Duration()
	if !ok || d != 6.006 {
		t.Errorf("duration: got %v ok=%v", d, ok)
	}
	stream, ok := result.AudioStream()
	if !ok || stream.Channels != 6 {
		t.Errorf("audio stream: got %+v ok=%v", stream, ok)
	}
	if got := stream.SampleRateInt(48000); got != 44100 {
		t.Errorf("sample rate: got %d", got)
	}
}

func TestResult_missing_values(t *testing.T) {
	var result Result
	if _, ok := result.Duration(); ok {
		t.Error("empty duration should not parse")
	}
	if _, ok := result.AudioStream(); ok {
		t.Error("no streams should give no audio stream")
	}
	if got := (Stream{}).SampleRateInt(48000); got != 48000 {
		t.Errorf("fallback sample rate: got %d", got)
	}
}
