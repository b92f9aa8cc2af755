package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleProgress streams JobRecord snapshots over a websocket, one per poll
// interval, closing after the terminal snapshot has been delivered. Polling
// GET /api/status remains the canonical interface; this is a convenience for
// front ends that want push updates.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.reg.Get(id); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "job_id", id, "err", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		rec, err := s.reg.Get(id)
		if err != nil {
			// Cleaned up while streaming.
			_ = conn.WriteJSON(apiError{Error: "job not found"})
			return
		}
		if err := conn.WriteJSON(rec); err != nil {
			return
		}
		if rec.Status.Terminal() {
			return
		}
		<-ticker.C
	}
}
