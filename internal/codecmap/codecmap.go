// Package codecmap translates between the store's codec/container
// identifiers and HLS codec strings. Mapping tables are loaded once from a
// configuration file and memoized for the process lifetime; a restart is the
// only invalidation path.
package codecmap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
)

// H.264 sub-parameter defaults, used when a flow or codec string omits them.
const (
	defaultAVCProfile = 0x64
	defaultAVCFlags   = 0x00
	defaultAVCLevel   = 0x1f
	defaultAACOTI     = 0x40
)

// defaultContainer is assumed when no probe data is available.
const defaultContainer = "video/mp2t"

// Mapping pairs one store codec identifier with its HLS short name.
type Mapping struct {
	TAMS string `yaml:"tams" json:"tams"`
	HLS  string `yaml:"hls" json:"hls"`
}

// File is the on-disk shape of the mapping configuration. YAML is a JSON
// superset, so JSON payloads load unchanged.
type File struct {
	Codecs     []Mapping         `yaml:"codecs" json:"codecs"`
	Containers map[string]string `yaml:"containers" json:"containers"`
}

// Tables holds the two memoized lookup directions plus the container map.
// Read-only after construction and safe for concurrent use.
type Tables struct {
	toHLS      map[string]string
	fromHLS    map[string]string
	containers map[string]string
}

// Parse builds Tables from raw mapping file content.
func Parse(data []byte) (*Tables, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("codec mappings: %w", err)
	}
	t := &Tables{
		toHLS:      make(map[string]string, len(file.Codecs)),
		fromHLS:    make(map[string]string, len(file.Codecs)),
		containers: file.Containers,
	}
	for _, m := range file.Codecs {
		t.toHLS[m.TAMS] = m.HLS
		t.fromHLS[m.HLS] = m.TAMS
	}
	return t, nil
}

// LoadFile reads and parses a mapping file.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

var (
	loadOnce  sync.Once
	loaded    *Tables
	loadedErr error
)

// Default loads the tables from path exactly once per process and returns the
// same Tables on every subsequent call regardless of path.
func Default(path string) (*Tables, error) {
	loadOnce.Do(func() {
		loaded, loadedErr = LoadFile(path)
	})
	return loaded, loadedErr
}

// ToHLS builds the HLS codec string for a flow. Codecs with structured
// sub-parameters (avc1, mp4a) get a dotted suffix derived from the flow's
// essence parameters; all others emit the bare short name. An unmapped store
// codec passes through as the final path element of its identifier.
func (t *Tables) ToHLS(flow model.Flow) string {
	short, ok := t.toHLS[flow.Codec]
	if !ok {
		short = flow.Codec[strings.LastIndex(flow.Codec, "/")+1:]
	}
	switch short {
	case "avc1":
		profile, flags, level := defaultAVCProfile, defaultAVCFlags, defaultAVCLevel
		if avc := flow.Essence.AVC; avc != nil {
			profile, flags, level = avc.Profile, avc.Flags, avc.Level
		}
		return fmt.Sprintf("avc1.%02x%02x%02x", profile, flags, level)
	case "mp4a":
		oti := defaultAACOTI
		if aac := flow.Essence.AAC; aac != nil {
			oti = aac.MP4OTI
		}
		return fmt.Sprintf("mp4a.%x.2", oti)
	default:
		return short
	}
}

// FromHLS decodes an HLS codec string back into a store codec identifier and
// any recovered essence parameters. Unknown short names map to
// "unknown/<name>" rather than failing.
func (t *Tables) FromHLS(codecString string) (string, model.EssenceParameters) {
	short, suffix, _ := strings.Cut(codecString, ".")
	codec, ok := t.fromHLS[short]
	if !ok {
		codec = "unknown/" + short
	}
	var ess model.EssenceParameters
	switch short {
	case "avc1":
		ess.AVC = parseAVCSuffix(suffix)
	case "mp4a":
		ess.AAC = parseAACSuffix(suffix)
	}
	return codec, ess
}

// Container maps an ffprobe format_name (possibly a comma-separated list of
// aliases) to a store container identifier. An empty name falls back to the
// MPEG-TS default; a name with no mapping becomes "unknown/<first>".
func (t *Tables) Container(formatName string) string {
	if formatName == "" {
		return defaultContainer
	}
	names := strings.Split(formatName, ",")
	for _, name := range names {
		if mapped, ok := t.containers[name]; ok {
			return mapped
		}
	}
	return "unknown/" + names[0]
}

// parseAVCSuffix decodes the three 2-digit hex bytes of an avc1 suffix
// (profile, constraint flags, level), falling back per byte when short.
func parseAVCSuffix(suffix string) *model.AVCParameters {
	return &model.AVCParameters{
		Profile: hexByteAt(suffix, 0, defaultAVCProfile),
		Flags:   hexByteAt(suffix, 2, defaultAVCFlags),
		Level:   hexByteAt(suffix, 4, defaultAVCLevel),
	}
}

// parseAACSuffix decodes the leading object-type indicator of an mp4a suffix
// such as "40.2".
func parseAACSuffix(suffix string) *model.AACParameters {
	oti, _, _ := strings.Cut(suffix, ".")
	if n, err := strconv.ParseInt(oti, 16, 32); err == nil {
		return &model.AACParameters{MP4OTI: int(n)}
	}
	return &model.AACParameters{MP4OTI: defaultAACOTI}
}

func hexByteAt(s string, offset, fallback int) int {
	if len(s) < offset+2 {
		return fallback
	}
	n, err := strconv.ParseInt(s[offset:offset+2], 16, 32)
	if err != nil {
		return fallback
	}
	return int(n)
}
