package supervisor

import (
	"syscall"

	"pdf-conversion-service/internal/models"
	"pdf-conversion-service/internal/telemetry"
)

// Cancel marks the job cancelled and makes sure its worker actually stops,
// escalating cooperative intent -> SIGTERM -> SIGKILL across two bounded
// grace periods. The returned status is what the job ended up as: cancelling
// an already-terminal job is a no-op reporting the existing status.
func (s *Supervisor) Cancel(id string) (models.Status, error) {
	rec, err := s.reg.Get(id)
	if err != nil {
		return "", err
	}
	if rec.Status.Terminal() {
		return rec.Status, nil
	}

	_ = s.reg.Update(id, models.StatusUpdate{
		Status:  models.StatusPtr(models.StatusCancelled),
		Step:    models.StrPtr(models.StepCancelled),
		Message: models.StrPtr("Cancelled by user"),
	})
	s.hb.Remove(id)
	telemetry.JobsCancelled.Inc()

	h, ok := s.handleFor(id)
	if !ok {
		// Cancellation raced the launch; there is no process to stop.
		return models.StatusCancelled, nil
	}

	// Best effort: a worker that cannot read the intent still gets stopped
	// by the escalation below.
	if err := h.Channel.Merge(models.StatusUpdate{
		Status:  models.StatusPtr(models.StatusCancelled),
		Step:    models.StrPtr(models.StepCancelled),
		Message: models.StrPtr("Cancelled by user"),
	}); err != nil {
		s.logger.Warn("write cancellation intent", "job_id", id, "err", err)
	}

	go s.escalate(h)
	return models.StatusCancelled, nil
}

// escalate stops the worker within a bounded time regardless of cooperation.
// Resource release stays with the monitor task, which observes the exit.
func (s *Supervisor) escalate(h *Handle) {
	logger := s.logger.With("job_id", h.JobID)

	if h.waitExit(s.cfg.CancelGraceCooperative) {
		logger.Info("worker exited cooperatively")
		return
	}

	logger.Info("worker still alive, sending SIGTERM")
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
	}
	if h.waitExit(s.cfg.CancelGraceTerm) {
		return
	}

	logger.Warn("worker ignored SIGTERM, sending SIGKILL")
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}
