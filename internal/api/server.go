package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"pdf-conversion-service/internal/config"
	"pdf-conversion-service/internal/heartbeat"
	"pdf-conversion-service/internal/registry"
	"pdf-conversion-service/internal/supervisor"
	"pdf-conversion-service/internal/telemetry"
)

// Server wires HTTP handlers for the conversion front end.
type Server struct {
	cfg      config.Config
	reg      *registry.Registry
	hb       *heartbeat.Tracker
	sup      *supervisor.Supervisor
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New constructs the API server.
func New(cfg config.Config, reg *registry.Registry, hb *heartbeat.Tracker, sup *supervisor.Supervisor, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		reg:    reg,
		hb:     hb,
		sup:    sup,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/convert", s.handleConvert)
		r.Get("/status/{id}", s.handleStatus)
		r.Post("/heartbeat/{id}", s.handleHeartbeat)
		r.Post("/cancel/{id}", s.handleCancel)
		r.Get("/download/{id}", s.handleDownload)
		r.Delete("/cleanup/{id}", s.handleCleanup)
		r.Post("/merge", s.handleMerge)
		r.Get("/progress/{id}", s.handleProgress)
	})

	return r
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Error: msg})
}
