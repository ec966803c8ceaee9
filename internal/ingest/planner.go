package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/grafov/m3u8"

	"github.com/byomakase/time-addressable-media-store-tools/internal/codecmap"
	"github.com/byomakase/time-addressable-media-store-tools/internal/fetch"
	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/probe"
)

const (
	fallbackChannels   = 2
	fallbackSampleRate = 48000
)

// Plan is the outcome of reading a variant playlist: the flow records to
// create, a multi flow collecting them, and the media manifest each flow's
// segments will be translated from.
type Plan struct {
	Flows     []model.Flow
	MultiFlow *model.Flow
	// Manifests maps flow id to the media manifest location feeding it.
	Manifests map[string]string
}

// Planner reads a variant (multi-rendition) playlist and derives the store
// flow records for each rendition.
type Planner struct {
	fetcher *fetch.Fetcher
	prober  MediaProber
	codecs  *codecmap.Tables
	log     *slog.Logger
}

// NewPlanner builds a Planner. prober may be nil; probe-derived fields then
// keep their fallbacks.
func NewPlanner(fetcher *fetch.Fetcher, prober MediaProber, codecs *codecmap.Tables, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{fetcher: fetcher, prober: prober, codecs: codecs, log: log}
}

// PlanVariant parses the variant playlist at manifestLocation and returns
// the flows to create. Supplying a media playlist is an error in this
// direction: there are no renditions to plan from.
func (p *Planner) PlanVariant(ctx context.Context, manifestLocation, label string) (*Plan, error) {
	content, err := p.fetcher.Get(ctx, manifestLocation)
	if err != nil {
		return nil, err
	}
	playlist, kind, err := m3u8.Decode(*bytes.NewBuffer(content), false)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", manifestLocation, err)
	}
	if kind != m3u8.MASTER {
		return nil, fmt.Errorf("%s: media manifest supplied where a variant manifest was required", manifestLocation)
	}
	master := playlist.(*m3u8.MasterPlaylist)

	plan := &Plan{Manifests: map[string]string{}}
	audioCodecs := map[string]string{}

	for _, variant := range master.Variants {
		if variant == nil || variant.Iframe {
			continue
		}
		location := fetch.ResolveURI(manifestLocation, variant.URI)
		flow := p.renditionFlow(ctx, location, label, variant)
		if variant.Audio != "" {
			if parts := strings.Split(variant.Codecs, ","); len(parts) > 1 {
				audioCodecs[variant.Audio] = strings.TrimSpace(parts[1])
			}
		}
		plan.Flows = append(plan.Flows, flow)
		plan.Manifests[flow.ID] = location
	}

	for _, alt := range collectAudioAlternatives(master) {
		location := fetch.ResolveURI(manifestLocation, alt.URI)
		flow := p.alternativeFlow(ctx, location, label, alt, audioCodecs[alt.GroupId])
		plan.Flows = append(plan.Flows, flow)
		plan.Manifests[flow.ID] = location
	}

	p.applySegmentDurations(ctx, plan)
	p.assignSources(plan, label, "HLS Import ("+baseName(manifestLocation)+")")
	return plan, nil
}

// renditionFlow derives one flow from a stream-info entry. Resolution
// present means video; otherwise audio, following HLS convention.
func (p *Planner) renditionFlow(ctx context.Context, location, label string, variant *m3u8.Variant) model.Flow {
	probeResult := p.probeFirstSegment(ctx, location)
	codecList := strings.Split(variant.Codecs, ",")
	codec, essence := p.codecs.FromHLS(strings.TrimSpace(codecList[0]))

	formatName := ""
	if probeResult != nil {
		formatName = probeResult.Format.FormatName
	}
	flow := model.Flow{
		ID:          uuid.NewString(),
		Label:       label,
		Description: "HLS Import (" + baseName(variant.URI) + ")",
		Codec:       codec,
		Container:   p.codecs.Container(formatName),
		AvgBitRate:  int64(variant.AverageBandwidth),
		MaxBitRate:  int64(variant.Bandwidth),
		Essence:     essence,
	}
	if variant.Resolution != "" {
		width, height := parseResolution(variant.Resolution)
		rate := fractionFromFloat(variant.FrameRate)
		flow.Format = model.FormatVideo
		flow.Essence.FrameWidth = width
		flow.Essence.FrameHeight = height
		flow.Essence.FrameRate = &rate
		return flow
	}
	flow.Format = model.FormatAudio
	flow.Essence.Channels = fallbackChannels
	flow.Essence.SampleRate = fallbackSampleRate
	if probeResult != nil {
		if stream, ok := probeResult.AudioStream(); ok {
			if stream.Channels > 0 {
				flow.Essence.Channels = stream.Channels
			}
			flow.Essence.SampleRate = stream.SampleRateInt(fallbackSampleRate)
		}
	}
	return flow
}

// alternativeFlow derives one audio flow from an alternate-rendition entry,
// using the codec declared for its group by the referencing stream-info.
func (p *Planner) alternativeFlow(ctx context.Context, location, label string, alt *m3u8.Alternative, hlsCodec string) model.Flow {
	if hlsCodec == "" {
		// No stream-info declared a codec for this group; assume AAC-LC.
		hlsCodec = "mp4a.40.2"
	}
	codec, essence := p.codecs.FromHLS(hlsCodec)
	probeResult := p.probeFirstSegment(ctx, location)

	formatName := ""
	channels := fallbackChannels
	sampleRate := fallbackSampleRate
	var bitRate int64
	if probeResult != nil {
		formatName = probeResult.Format.FormatName
		if stream, ok := probeResult.AudioStream(); ok {
			if stream.Channels > 0 {
				channels = stream.Channels
			}
			sampleRate = stream.SampleRateInt(fallbackSampleRate)
			if n, err := strconv.ParseInt(stream.BitRate, 10, 64); err == nil {
				bitRate = n
			}
		}
	}
	flow := model.Flow{
		ID:          uuid.NewString(),
		Label:       label,
		Description: "HLS Import (" + baseName(alt.URI) + ")",
		Codec:       codec,
		Container:   p.codecs.Container(formatName),
		Format:      model.FormatAudio,
		Essence:     essence,
		AvgBitRate:  bitRate,
		MaxBitRate:  bitRate,
	}
	flow.Essence.Channels = channels
	flow.Essence.SampleRate = sampleRate
	return flow
}

// probeFirstSegment fetches a media manifest and probes its first segment.
// Best-effort: any failure returns nil.
func (p *Planner) probeFirstSegment(ctx context.Context, manifestLocation string) *probe.Result {
	if p.prober == nil {
		return nil
	}
	content, err := p.fetcher.Get(ctx, manifestLocation)
	if err != nil {
		p.log.Debug("media manifest fetch failed for probe", slog.String("uri", manifestLocation), slog.String("error", err.Error()))
		return nil
	}
	playlist, kind, err := m3u8.Decode(*bytes.NewBuffer(content), false)
	if err != nil || kind != m3u8.MEDIA {
		return nil
	}
	media := playlist.(*m3u8.MediaPlaylist)
	var first string
	for _, segment := range media.Segments {
		if segment != nil {
			first = segment.URI
			break
		}
	}
	if first == "" {
		return nil
	}
	result, err := p.prober.Probe(ctx, fetch.ResolveURI(manifestLocation, first))
	if err != nil {
		p.log.Debug("segment probe failed", slog.String("uri", first), slog.String("error", err.Error()))
		return nil
	}
	return result
}

// applySegmentDurations reads each flow's media manifest target duration
// into the flow record as its nominal segment duration.
func (p *Planner) applySegmentDurations(ctx context.Context, plan *Plan) {
	durations := map[string]model.Fraction{}
	for i := range plan.Flows {
		location := plan.Manifests[plan.Flows[i].ID]
		duration, ok := durations[location]
		if !ok {
			duration = p.manifestTargetDuration(ctx, location)
			durations[location] = duration
		}
		if !duration.IsZero() {
			d := duration
			plan.Flows[i].SegmentDuration = &d
		}
	}
}

func (p *Planner) manifestTargetDuration(ctx context.Context, location string) model.Fraction {
	content, err := p.fetcher.Get(ctx, location)
	if err != nil {
		return model.Fraction{}
	}
	playlist, kind, err := m3u8.Decode(*bytes.NewBuffer(content), false)
	if err != nil || kind != m3u8.MEDIA {
		return model.Fraction{}
	}
	media := playlist.(*m3u8.MediaPlaylist)
	return model.Fraction{Numerator: int64(math.Round(media.TargetDuration)), Denominator: 1}
}

// assignSources mints one source id per essence format, stamps it on each
// leaf, and builds the multi flow referencing every leaf with its role.
func (p *Planner) assignSources(plan *Plan, label, description string) {
	if len(plan.Flows) == 0 {
		return
	}
	sources := map[model.Format]string{}
	collection := make([]model.CollectionItem, 0, len(plan.Flows))
	for i := range plan.Flows {
		format := plan.Flows[i].Format
		if _, ok := sources[format]; !ok {
			sources[format] = uuid.NewString()
		}
		plan.Flows[i].SourceID = sources[format]
		collection = append(collection, model.CollectionItem{
			ID:   plan.Flows[i].ID,
			Role: format.Role(),
		})
	}
	plan.MultiFlow = &model.Flow{
		ID:             uuid.NewString(),
		SourceID:       uuid.NewString(),
		Label:          label,
		Description:    description,
		Format:         model.FormatMulti,
		FlowCollection: collection,
	}
}

// collectAudioAlternatives gathers the distinct audio alternate renditions
// referenced anywhere in the master playlist, in first-reference order.
func collectAudioAlternatives(master *m3u8.MasterPlaylist) []*m3u8.Alternative {
	var out []*m3u8.Alternative
	seen := map[string]bool{}
	for _, variant := range master.Variants {
		if variant == nil {
			continue
		}
		for _, alt := range variant.Alternatives {
			if alt == nil || alt.Type != "AUDIO" || alt.URI == "" {
				continue
			}
			key := alt.GroupId + "\x00" + alt.URI
			if !seen[key] {
				seen[key] = true
				out = append(out, alt)
			}
		}
	}
	return out
}

func parseResolution(res string) (int, int) {
	w, h, ok := strings.Cut(strings.ToLower(res), "x")
	if !ok {
		return 0, 0
	}
	width, _ := strconv.Atoi(w)
	height, _ := strconv.Atoi(h)
	return width, height
}

// fractionFromFloat converts a decimal frame rate to its simplest exact
// fraction with a bounded denominator (29.97 becomes 2997/100), via
// continued-fraction best approximation.
func fractionFromFloat(x float64) model.Fraction {
	const maxDenominator = 1_000_000
	if x <= 0 {
		return model.Fraction{Numerator: 0, Denominator: 1}
	}
	// Continued fraction expansion, stopping before the denominator bound.
	p0, q0 := int64(0), int64(1)
	p1, q1 := int64(1), int64(0)
	remainder := x
	for i := 0; i < 64; i++ {
		whole := int64(remainder)
		p2 := whole*p1 + p0
		q2 := whole*q1 + q0
		if q2 > maxDenominator {
			break
		}
		p0, q0, p1, q1 = p1, q1, p2, q2
		frac := remainder - float64(whole)
		if frac < 1e-12 {
			break
		}
		remainder = 1 / frac
	}
	return model.Fraction{Numerator: p1, Denominator: q1}
}

func baseName(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
