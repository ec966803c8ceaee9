package egress

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/byomakase/time-addressable-media-store-tools/internal/store"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// Handler exposes the playlist endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Routes mounts the playlist endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/hls/sources/{source_id}/manifest.m3u8", h.GetSourcePlaylist)
	r.Get("/hls/flows/{flow_id}/manifest.m3u8", h.GetFlowPlaylist)
	r.Get("/hls/flows/{flow_id}/segments/manifest.m3u8", h.GetMediaPlaylist)
}

// GetSourcePlaylist handles GET /hls/sources/{source_id}/manifest.m3u8.
// Errors surface to the client: 404 for an unknown source, 502 otherwise.
func (h *Handler) GetSourcePlaylist(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	if sourceID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	out, err := h.svc.SourcePlaylist(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("source playlist failed",
			slog.String("source_id", sourceID),
			slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	writePlaylist(w, out)
}

// GetFlowPlaylist handles GET /hls/flows/{flow_id}/manifest.m3u8. Always 200:
// generation errors degrade to an empty playlist.
func (h *Handler) GetFlowPlaylist(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flow_id")
	if flowID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writePlaylist(w, h.svc.FlowPlaylist(r.Context(), flowID))
}

// GetMediaPlaylist handles GET /hls/flows/{flow_id}/segments/manifest.m3u8.
// Always 200, like GetFlowPlaylist.
func (h *Handler) GetMediaPlaylist(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flow_id")
	if flowID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writePlaylist(w, h.svc.MediaPlaylist(r.Context(), flowID))
}

func writePlaylist(w http.ResponseWriter, out string) {
	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}
