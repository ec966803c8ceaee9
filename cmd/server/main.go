package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/byomakase/time-addressable-media-store-tools/internal/codecmap"
	"github.com/byomakase/time-addressable-media-store-tools/internal/egress"
	"github.com/byomakase/time-addressable-media-store-tools/internal/hierarchy"
	"github.com/byomakase/time-addressable-media-store-tools/internal/platform/config"
	"github.com/byomakase/time-addressable-media-store-tools/internal/platform/logger"
	"github.com/byomakase/time-addressable-media-store-tools/internal/platform/metrics"
	"github.com/byomakase/time-addressable-media-store-tools/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	tamsURL := config.GetEnv("TAMS_URL", "http://localhost:4010")
	tamsToken := config.GetEnv("TAMS_TOKEN", "")
	mappingsPath := config.GetEnv("CODEC_MAPPINGS", "configs/mappings.yaml")
	segmentWindow := config.GetEnvInt("SEGMENT_WINDOW", egress.DefaultSegmentWindow)
	resolverLimit := config.GetEnvInt("RESOLVER_CONCURRENCY", hierarchy.DefaultMaxInFlight)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	codecs, err := codecmap.Default(mappingsPath)
	if err != nil {
		log.Error("codec mappings load failed", "path", mappingsPath, "error", err)
		os.Exit(1)
	}

	client := store.NewClient(tamsURL, tamsToken, nil)
	resolver := hierarchy.New(client, log, resolverLimit)
	met := metrics.New()
	svc := egress.NewService(client, codecs, resolver, log, met, segmentWindow)
	h := egress.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(nil).ServeHTTP(w, req)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"tams_url", tamsURL,
		"segment_window", segmentWindow,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
