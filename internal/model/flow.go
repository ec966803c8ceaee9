// Package model holds the store's record types: flows, segments and the
// descriptors emitted by ingestion. Records arrive as loosely-typed JSON from
// the store API; Validate methods check per-format required fields at that
// boundary so the rest of the code can trust them.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Format classifies a flow's essence.
type Format string

const (
	FormatVideo Format = "urn:x-nmos:format:video"
	FormatAudio Format = "urn:x-nmos:format:audio"
	FormatData  Format = "urn:x-nmos:format:data"
	FormatMulti Format = "urn:x-nmos:format:multi"
)

// Role returns the short role name of the format ("video", "audio", ...).
func (f Format) Role() string {
	s := string(f)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return s[i+1:]
		}
	}
	return s
}

// SubtitleDataType marks a data flow as carrying subtitles.
const SubtitleDataType = "urn:x-tams:data:subtitle"

// Flow tags with defined meaning for HLS handling.
const (
	TagExclude       = "hls_exclude"        // "true" hides the flow from playback
	TagSegments      = "hls_segments"       // playlist window size, "inf" for unbounded
	TagSegmentLength = "hls_segment_length" // nominal segment seconds, media-sequence derivation
	TagFlowStatus    = "flow_status"        // "ingesting" while segments are still arriving
)

// ErrValidation wraps all record validation failures.
var ErrValidation = errors.New("invalid record")

// Fraction is an exact rational, used for frame rates and nominal segment
// durations. A zero Denominator reads as 1.
type Fraction struct {
	Numerator   int64 `json:"numerator"`
	Denominator int64 `json:"denominator,omitempty"`
}

// Float converts the fraction for display or formula inputs that tolerate it.
func (f Fraction) Float() float64 {
	den := f.Denominator
	if den == 0 {
		den = 1
	}
	return float64(f.Numerator) / float64(den)
}

// IsZero reports whether the fraction is unset or zero-valued.
func (f Fraction) IsZero() bool { return f.Numerator == 0 }

// AVCParameters are the H.264 sub-parameters carried in avc1 codec strings.
type AVCParameters struct {
	Profile int `json:"profile"`
	Flags   int `json:"flags"`
	Level   int `json:"level"`
}

// AACParameters are the AAC sub-parameters carried in mp4a codec strings.
type AACParameters struct {
	MP4OTI int `json:"mp4_oti"`
}

// EssenceParameters is the per-format detail block of a flow. Which fields
// are required depends on the flow's format.
type EssenceParameters struct {
	FrameRate   *Fraction      `json:"frame_rate,omitempty"`
	FrameWidth  int            `json:"frame_width,omitempty"`
	FrameHeight int            `json:"frame_height,omitempty"`
	Channels    int            `json:"channels,omitempty"`
	SampleRate  int            `json:"sample_rate,omitempty"`
	DataType    string         `json:"data_type,omitempty"`
	AVC         *AVCParameters `json:"avc_parameters,omitempty"`
	AAC         *AACParameters `json:"codec_parameters,omitempty"`
}

// CollectionItem is one role-tagged child reference in a flow collection.
type CollectionItem struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Flow is a named, typed timeline of media segments. Flows are externally
// owned records; this code only reads or writes them through the store.
type Flow struct {
	ID              string            `json:"id"`
	SourceID        string            `json:"source_id,omitempty"`
	Label           string            `json:"label,omitempty"`
	Description     string            `json:"description,omitempty"`
	Format          Format            `json:"format"`
	Codec           string            `json:"codec,omitempty"`
	Container       string            `json:"container,omitempty"`
	Created         time.Time         `json:"created,omitempty"`
	SegmentDuration *Fraction         `json:"segment_duration,omitempty"`
	Essence         EssenceParameters `json:"essence_parameters,omitempty"`
	Tags            map[string]string `json:"tags,omitempty"`
	AvgBitRate      int64             `json:"avg_bit_rate,omitempty"`
	MaxBitRate      int64             `json:"max_bit_rate,omitempty"`
	FlowCollection  []CollectionItem  `json:"flow_collection,omitempty"`
}

// Tag returns the value of a tag, or "" when unset.
func (f Flow) Tag(key string) string {
	return f.Tags[key]
}

// Hidden reports whether the flow is tagged out of playback.
func (f Flow) Hidden() bool {
	return f.Tag(TagExclude) == "true"
}

// Ingesting reports whether segments are still being written to the flow.
func (f Flow) Ingesting() bool {
	return f.Tag(TagFlowStatus) == "ingesting"
}

// IsSubtitle reports whether the flow is a data flow carrying subtitles.
func (f Flow) IsSubtitle() bool {
	return f.Format == FormatData && f.Essence.DataType == SubtitleDataType
}

// NominalSegmentSeconds returns the flow's declared nominal segment duration
// in seconds, preferring the exact segment_duration record over the
// hls_segment_length tag. Zero means unknown.
func (f Flow) NominalSegmentSeconds() float64 {
	if f.SegmentDuration != nil && !f.SegmentDuration.IsZero() {
		return f.SegmentDuration.Float()
	}
	if s := f.Tag(TagSegmentLength); s != "" {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	return 0
}

// SegmentWindow returns the number of segments to present in a media
// playlist, falling back to def when untagged. unbounded is true for the
// "inf" sentinel, meaning all available segments.
func (f Flow) SegmentWindow(def int) (limit int, unbounded bool) {
	tag := f.Tag(TagSegments)
	if tag == "" {
		return def, false
	}
	if tag == "inf" {
		return 0, true
	}
	n, err := strconv.Atoi(tag)
	if err != nil || n <= 0 {
		return def, false
	}
	return n, false
}

// Validate checks the per-format required field set.
func (f Flow) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("%w: flow missing id", ErrValidation)
	}
	switch f.Format {
	case FormatVideo:
		if f.Essence.FrameWidth <= 0 || f.Essence.FrameHeight <= 0 {
			return fmt.Errorf("%w: video flow %s missing frame dimensions", ErrValidation, f.ID)
		}
	case FormatAudio:
		if f.Essence.Channels <= 0 {
			return fmt.Errorf("%w: audio flow %s missing channel count", ErrValidation, f.ID)
		}
	case FormatData:
		// No required essence fields.
	case FormatMulti:
		if len(f.FlowCollection) == 0 {
			return fmt.Errorf("%w: multi flow %s has empty collection", ErrValidation, f.ID)
		}
		for _, item := range f.FlowCollection {
			if item.ID == "" {
				return fmt.Errorf("%w: multi flow %s has collection item without id", ErrValidation, f.ID)
			}
		}
	default:
		return fmt.Errorf("%w: flow %s has unknown format %q", ErrValidation, f.ID, f.Format)
	}
	return nil
}
