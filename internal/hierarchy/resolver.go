// Package hierarchy expands a flow's (or source's) composition tree into
// flat, classified sets of leaf flows. Traversal is cycle-safe: a visited-id
// set guarantees each distinct flow is fetched at most once, no matter how
// often the tree references it.
package hierarchy

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/store"
)

// DefaultMaxInFlight bounds concurrent store fetches during resolution, to
// protect the upstream store.
const DefaultMaxInFlight = 4

// Resolved holds the classified leaf flows of one resolution pass. Bucket
// order is deterministic: breadth-first from the roots, children in
// collection order.
type Resolved struct {
	Video    []model.Flow
	Audio    []model.Flow
	Subtitle []model.Flow
	Other    []model.Flow
}

// Resolver walks flow composition trees through a store reader.
type Resolver struct {
	store       store.Reader
	log         *slog.Logger
	maxInFlight int
}

// New returns a Resolver. maxInFlight <= 0 selects DefaultMaxInFlight.
func New(reader store.Reader, log *slog.Logger, maxInFlight int) *Resolver {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &Resolver{store: reader, log: log, maxInFlight: maxInFlight}
}

// Resolve expands the tree rooted at flowID.
func (r *Resolver) Resolve(ctx context.Context, flowID string) (*Resolved, error) {
	root, err := r.store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, []model.Flow{root})
}

// ResolveSource expands the trees of every flow belonging to a source.
func (r *Resolver) ResolveSource(ctx context.Context, sourceID string) (*Resolved, error) {
	roots, err := r.store.GetFlowsBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, roots)
}

// resolve fetches the whole reachable tree, then classifies it with a second
// deterministic in-memory walk. Fetches run concurrently a wave at a time;
// the visited set is consulted under the lock before a child is queued, so
// two in-flight fetches are never issued for the same id. Any fetch failure
// aborts the whole resolution.
func (r *Resolver) resolve(ctx context.Context, roots []model.Flow) (*Resolved, error) {
	fetched := make(map[string]model.Flow, len(roots))
	visited := make(map[string]bool, len(roots))
	for _, root := range roots {
		visited[root.ID] = true
		fetched[root.ID] = root
	}

	frontier := nextWave(roots, visited)
	var mu sync.Mutex
	for len(frontier) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.maxInFlight)
		wave := make([]model.Flow, len(frontier))
		for i, id := range frontier {
			i, id := i, id
			g.Go(func() error {
				flow, err := r.store.GetFlow(gctx, id)
				if err != nil {
					return err
				}
				mu.Lock()
				fetched[flow.ID] = flow
				mu.Unlock()
				wave[i] = flow
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		frontier = nextWave(wave, visited)
	}

	return classify(roots, fetched, r.log), nil
}

// nextWave collects child ids of flows that still need fetching, marking
// them visited as they are queued. Hidden flows are not descended into.
func nextWave(flows []model.Flow, visited map[string]bool) []string {
	var wave []string
	for _, flow := range flows {
		if flow.Hidden() {
			continue
		}
		for _, item := range flow.FlowCollection {
			if !visited[item.ID] {
				visited[item.ID] = true
				wave = append(wave, item.ID)
			}
		}
	}
	return wave
}

// classify walks the fetched tree breadth-first from the roots and buckets
// the leaves. The walk re-applies the dedup check so a flow referenced twice
// lands in exactly one bucket position.
func classify(roots []model.Flow, fetched map[string]model.Flow, log *slog.Logger) *Resolved {
	out := &Resolved{}
	queue := make([]string, 0, len(fetched))
	seen := make(map[string]bool, len(fetched))
	for _, root := range roots {
		if !seen[root.ID] {
			seen[root.ID] = true
			queue = append(queue, root.ID)
		}
	}
	for len(queue) > 0 {
		flow := fetched[queue[0]]
		queue = queue[1:]
		switch {
		case flow.Hidden():
			// Dropped entirely, children included.
		case len(flow.FlowCollection) > 0:
			for _, item := range flow.FlowCollection {
				if !seen[item.ID] {
					seen[item.ID] = true
					queue = append(queue, item.ID)
				}
			}
		case flow.Format == model.FormatVideo:
			out.Video = append(out.Video, flow)
		case flow.Format == model.FormatAudio:
			out.Audio = append(out.Audio, flow)
		case flow.IsSubtitle():
			out.Subtitle = append(out.Subtitle, flow)
		default:
			if log != nil {
				log.Debug("flow not usable for playback", slog.String("flow_id", flow.ID), slog.String("format", string(flow.Format)))
			}
			out.Other = append(out.Other, flow)
		}
	}
	return out
}
