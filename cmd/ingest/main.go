// Command ingest imports an HLS presentation into the store. Given a variant
// playlist it first plans and creates the flow records, then translates each
// rendition's media playlist into segment descriptors, polling open playlists
// until they close. Given FLOW_ID it skips planning and feeds one existing
// flow from a media playlist.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/byomakase/time-addressable-media-store-tools/internal/codecmap"
	"github.com/byomakase/time-addressable-media-store-tools/internal/fetch"
	"github.com/byomakase/time-addressable-media-store-tools/internal/ingest"
	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/platform/config"
	"github.com/byomakase/time-addressable-media-store-tools/internal/platform/logger"
	"github.com/byomakase/time-addressable-media-store-tools/internal/platform/metrics"
	"github.com/byomakase/time-addressable-media-store-tools/internal/probe"
	"github.com/byomakase/time-addressable-media-store-tools/internal/store"
)

const (
	minPollDelay = time.Second
	retryDelay   = 5 * time.Second
)

func main() {
	_ = config.Load()

	manifestURL := config.GetEnv("MANIFEST_URL", "")
	flowID := config.GetEnv("FLOW_ID", "")
	label := config.GetEnv("LABEL", "hls-import")
	tamsURL := config.GetEnv("TAMS_URL", "http://localhost:4010")
	tamsToken := config.GetEnv("TAMS_TOKEN", "")
	mappingsPath := config.GetEnv("CODEC_MAPPINGS", "configs/mappings.yaml")
	ffprobeBin := config.GetEnv("FFPROBE_BIN", "ffprobe")
	metricsPort := config.GetEnv("METRICS_PORT", "")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	if manifestURL == "" {
		log.Error("MANIFEST_URL is required")
		os.Exit(1)
	}

	codecs, err := codecmap.Default(mappingsPath)
	if err != nil {
		log.Error("codec mappings load failed", "path", mappingsPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	if metricsPort != "" {
		go serveMetrics(metricsPort, met, log)
	}

	client := store.NewClient(tamsURL, tamsToken, nil)
	fetcher := fetch.New(nil)
	var prober ingest.MediaProber
	if ffprobeBin != "" {
		prober = probe.New(ffprobeBin, fetcher)
	}
	translator := ingest.NewTranslator(fetcher, client, prober, log)

	epoch := time.Now().UTC()
	manifests := map[string]string{}

	if flowID != "" {
		manifests[flowID] = manifestURL
	} else {
		planner := ingest.NewPlanner(fetcher, prober, codecs, log)
		plan, err := planner.PlanVariant(ctx, manifestURL, label)
		if err != nil {
			log.Error("variant planning failed", "manifest", manifestURL, "error", err)
			os.Exit(1)
		}
		if err := createFlows(ctx, client, plan, epoch); err != nil {
			log.Error("flow creation failed", "error", err)
			os.Exit(1)
		}
		for id, location := range plan.Manifests {
			manifests[id] = location
		}
		log.Info("flows created", "count", len(plan.Flows), "manifest", manifestURL)
	}

	g, ctx := errgroup.WithContext(ctx)
	for id, location := range manifests {
		job := ingest.Job{FlowID: id, ManifestLocation: location, Epoch: epoch}
		g.Go(func() error {
			return ingestFlow(ctx, translator, client, met, log, job)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
	log.Info("ingestion finished")
}

// createFlows writes the planned flow records, stamping each leaf as
// ingesting so playlist generation treats them as live.
func createFlows(ctx context.Context, writer store.Writer, plan *ingest.Plan, epoch time.Time) error {
	for _, flow := range plan.Flows {
		flow.Created = epoch
		if flow.Tags == nil {
			flow.Tags = map[string]string{}
		}
		flow.Tags[model.TagFlowStatus] = "ingesting"
		if err := writer.PutFlow(ctx, flow); err != nil {
			return err
		}
	}
	if plan.MultiFlow != nil {
		multi := *plan.MultiFlow
		multi.Created = epoch
		if err := writer.PutFlow(ctx, multi); err != nil {
			return err
		}
	}
	return nil
}

// ingestFlow polls one media playlist until it closes, then clears the flow's
// ingesting status. Transient errors are retried; only context cancellation
// ends the loop early.
func ingestFlow(ctx context.Context, translator *ingest.Translator, client *store.Client, met *metrics.Metrics, log *slog.Logger, job ingest.Job) error {
	var state *ingest.State
	for {
		result, err := translator.Run(ctx, job, state)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("ingestion run failed, retrying",
				"flow_id", job.FlowID, "error", err)
			if err := sleep(ctx, retryDelay); err != nil {
				return err
			}
			continue
		}
		met.AddSegmentsIngested(result.Emitted)
		if result.Emitted > 0 {
			log.Info("segments ingested", "flow_id", job.FlowID, "count", result.Emitted)
		}
		if result.Next == nil {
			return closeFlow(ctx, client, job.FlowID)
		}
		state = result.Next
		if err := sleep(ctx, pollDelay(state.TargetDuration)); err != nil {
			return err
		}
	}
}

// closeFlow clears the ingesting status so playlists switch to VOD.
func closeFlow(ctx context.Context, client *store.Client, flowID string) error {
	flow, err := client.GetFlow(ctx, flowID)
	if err != nil {
		return err
	}
	delete(flow.Tags, model.TagFlowStatus)
	return client.PutFlow(ctx, flow)
}

// pollDelay is half the manifest's target duration, the conventional HLS
// reload cadence, clamped to a floor.
func pollDelay(targetDuration float64) time.Duration {
	d := time.Duration(targetDuration * float64(time.Second) / 2)
	if d < minPollDelay {
		return minPollDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func serveMetrics(port string, met *metrics.Metrics, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler(nil))
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Error("metrics server error", "error", err)
	}
}
