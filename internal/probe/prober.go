// Package probe wraps ffprobe as the best-effort media probe collaborator.
// Probe failures are expected to be survivable: callers fall back to
// manifest-declared values when a probe errors.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/byomakase/time-addressable-media-store-tools/internal/fetch"
)

const presignExpiry = time.Minute

// Stream is one elementary stream reported by ffprobe.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Channels   int    `json:"channels"`
	SampleRate string `json:"sample_rate"`
	BitRate    string `json:"bit_rate"`
}

// Result is the subset of ffprobe's JSON output the mappers consume.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration in seconds, if reported.
func (r *Result) Duration() (float64, bool) {
	d, err := strconv.ParseFloat(r.Format.Duration, 64)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// AudioStream returns the first audio stream, if any.
func (r *Result) AudioStream() (Stream, bool) {
	for _, s := range r.Streams {
		if s.CodecType == "audio" {
			return s, true
		}
	}
	return Stream{}, false
}

// SampleRateInt parses the stream's sample rate, with fallback on absence.
func (s Stream) SampleRateInt(fallback int) int {
	if n, err := strconv.Atoi(s.SampleRate); err == nil && n > 0 {
		return n
	}
	return fallback
}

// Prober runs ffprobe against a URI. s3:// sources are presigned first so
// ffprobe can read them over HTTPS.
type Prober struct {
	bin     string
	fetcher *fetch.Fetcher
}

// New returns a Prober using the given ffprobe binary path ("ffprobe" when
// empty). fetcher supplies the S3 client for presigning and may be nil when
// only http sources will be probed.
func New(bin string, fetcher *fetch.Fetcher) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{bin: bin, fetcher: fetcher}
}

// Probe inspects the media at source.
func (p *Prober) Probe(ctx context.Context, source string) (*Result, error) {
	target, err := p.resolveTarget(ctx, source)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, p.bin,
		"-loglevel", "error",
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		target,
	)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe %s: %s", source, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe %s: %w", source, err)
	}
	var result Result
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", source, err)
	}
	return &result, nil
}

func (p *Prober) resolveTarget(ctx context.Context, source string) (string, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "s3" {
		return source, nil
	}
	if p.fetcher == nil {
		return "", fmt.Errorf("ffprobe %s: no s3 support configured", source)
	}
	client, err := p.fetcher.S3(ctx)
	if err != nil {
		return "", err
	}
	presigner := s3.NewPresignClient(client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(parsed.Host),
		Key:    aws.String(strings.TrimPrefix(parsed.Path, "/")),
	}, func(o *s3.PresignOptions) { o.Expires = presignExpiry })
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
