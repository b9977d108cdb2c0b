// Package rest exposes the conversion pipeline and the history store over HTTP.
package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/notesynth/internal/core/ports"
	"github.com/ewilliams-labs/notesynth/internal/core/services"
)

const defaultMaxUploadBytes = 32 << 20

// Options configures the HTTP adapter.
type Options struct {
	MaxUploadBytes int64
	CORSOrigins    []string
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	converter *services.Converter
	history   *services.HistoryService
	probes    map[string]ports.ModelProbe
	opts      Options
	log       *zap.Logger

	router  *mux.Router
	handler http.Handler
}

// NewHandler initializes the HTTP adapter and sets up routes. probes are
// reported by the health check under their map keys.
func NewHandler(
	converter *services.Converter,
	history *services.HistoryService,
	probes map[string]ports.ModelProbe,
	opts Options,
	log *zap.Logger,
) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		converter: converter,
		history:   history,
		probes:    probes,
		opts:      opts,
		log:       log,
		router:    mux.NewRouter().StrictSlash(true),
	}

	h.routes()

	h.handler = cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(h.router)

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	// conversion; the /music prefix is where existing clients post
	h.router.HandleFunc("/music_converter/{userId:[0-9]+}", h.ConvertMusic).Methods(http.MethodPost)
	h.router.HandleFunc("/music/music_converter/{userId:[0-9]+}", h.ConvertMusic).Methods(http.MethodPost)

	// history
	h.router.HandleFunc("/music/history/{userId:[0-9]+}", h.ListHistory).Methods(http.MethodGet)
	h.router.HandleFunc("/music/history/{userId:[0-9]+}/{id:[0-9]+}", h.DeleteHistory).Methods(http.MethodDelete)
	h.router.HandleFunc("/music/{id:[0-9]+}", h.GetMusic).Methods(http.MethodGet)
}

type healthResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Models  map[string]string `json:"models,omitempty"`
}

// HealthCheck reports the API and the readiness of each backing model.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Message: "NoteSynth is live"}
	status := http.StatusOK
	if len(h.probes) > 0 {
		resp.Models = make(map[string]string, len(h.probes))
	}
	for name, p := range h.probes {
		if err := p.Ready(r.Context()); err != nil {
			h.log.Warn("model not ready", zap.String("model", name), zap.Error(err))
			resp.Models[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Models[name] = "ready"
	}
	writeJSON(w, status, resp)
}
