package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the playlist and ingestion services.
type Metrics struct {
	registry                     *prometheus.Registry
	requestsTotal                prometheus.Counter
	playlistsGeneratedTotal      prometheus.Counter
	playlistErrorsSwallowedTotal prometheus.Counter
	segmentsIngestedTotal        prometheus.Counter
	errorsTotal                  prometheus.Counter
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tams_hls_requests_total",
		Help: "Total number of HTTP requests received",
	})
	playlistsGeneratedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tams_hls_playlists_generated_total",
		Help: "Total number of playlists generated successfully",
	})
	playlistErrorsSwallowedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tams_hls_playlist_errors_swallowed_total",
		Help: "Total number of playlist generation errors replaced by an empty playlist",
	})
	segmentsIngestedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tams_hls_segments_ingested_total",
		Help: "Total number of segment descriptors written to the store",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tams_hls_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		playlistsGeneratedTotal,
		playlistErrorsSwallowedTotal,
		segmentsIngestedTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:                     registry,
		requestsTotal:                requestsTotal,
		playlistsGeneratedTotal:      playlistsGeneratedTotal,
		playlistErrorsSwallowedTotal: playlistErrorsSwallowedTotal,
		segmentsIngestedTotal:        segmentsIngestedTotal,
		errorsTotal:                  errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncPlaylistsGenerated increments the playlists generated counter.
func (m *Metrics) IncPlaylistsGenerated() {
	m.playlistsGeneratedTotal.Inc()
}

// IncPlaylistErrorsSwallowed increments the swallowed playlist errors counter.
func (m *Metrics) IncPlaylistErrorsSwallowed() {
	m.playlistErrorsSwallowedTotal.Inc()
}

// AddSegmentsIngested adds to the segments ingested counter.
func (m *Metrics) AddSegmentsIngested(n int) {
	m.segmentsIngestedTotal.Add(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values; nil is
// allowed when there are none.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
