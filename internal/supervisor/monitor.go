package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"pdf-conversion-service/internal/models"
	"pdf-conversion-service/internal/telemetry"
)

// monitor is the per-job task that mirrors the status channel into the
// registry while the process lives and reconciles the final state when it
// exits. It is the sole owner of the job's resources: channel storage,
// heartbeat record, and process handle are released here and nowhere else.
func (s *Supervisor) monitor(h *Handle) {
	logger := s.logger.With(slog.String("job_id", h.JobID))

	// Nothing else is positioned to observe a panic in here, so it degrades
	// to an error record instead of propagating.
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("monitor failure: %v", r)
			logger.Error("monitor panicked", "panic", r)
			_ = s.reg.Update(h.JobID, errorUpdate(msg))
			s.release(h)
		}
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	lastProgress := 0
	resetUsed := false

	for h.Alive() {
		select {
		case <-h.done:
		case <-ticker.C:
			snap, err := h.Channel.Read()
			if err != nil {
				// Likely raced an in-progress write; keep the last mirrored
				// state and retry next tick.
				logger.Debug("transient status read failure", "err", err)
			} else {
				s.applySnapshot(h.JobID, snap, &lastProgress, &resetUsed, logger)
			}
			// Mirror the client's latest heartbeat next to the channel so
			// the out-of-process worker can consult it at checkpoints.
			if ts, ok := s.hb.LastSeen(h.JobID); ok {
				_ = h.Channel.TouchLiveness(ts)
			}
		}
	}

	s.finalize(h, logger)
}

// applySnapshot mirrors one channel snapshot into the registry, enforcing the
// progress contract: values stay in [0,100] and may decrease at most once per
// job (the fallback-strategy reset). Violations are logged and the offending
// progress value dropped; they never fail the job.
func (s *Supervisor) applySnapshot(id string, snap models.StatusUpdate, lastProgress *int, resetUsed *bool, logger *slog.Logger) {
	if snap.Progress != nil {
		switch p := *snap.Progress; {
		case p < 0 || p > 100:
			telemetry.ProtocolViolations.Inc()
			logger.Warn("progress out of range", "progress", p)
			snap.Progress = nil
		case p < *lastProgress && !*resetUsed:
			*resetUsed = true
			*lastProgress = p
			logger.Info("progress reset accepted for fallback strategy", "progress", p)
		case p < *lastProgress:
			telemetry.ProtocolViolations.Inc()
			logger.Warn("non-monotonic progress", "progress", p, "last", *lastProgress)
			snap.Progress = nil
		default:
			*lastProgress = p
		}
	}
	_ = s.reg.Update(id, snap)
}

// finalize runs exactly once, after the process exited. It captures the last
// reported state, resolves jobs the worker never concluded, and releases all
// per-job resources.
func (s *Supervisor) finalize(h *Handle, logger *slog.Logger) {
	defer s.release(h)

	snap, readErr := h.Channel.Read()

	rec, err := s.reg.Get(h.JobID)
	if err != nil {
		// Record already cleaned up underneath us; nothing left to resolve.
		logger.Warn("job record gone before worker exit")
		return
	}

	switch {
	case rec.Status == models.StatusCancelled:
		// Explicit cancellation always wins, even if the worker managed a
		// final write of its own. No artifact may survive.
		_ = os.Remove(h.OutputPath)
		logger.Info("cancelled job reaped", "exit_code", h.ExitCode())

	case readErr == nil && snap.Status != nil && snap.Status.Terminal():
		_ = s.reg.Update(h.JobID, snap)
		final, _ := s.reg.Get(h.JobID)
		if final.Status == models.StatusCompleted {
			telemetry.JobsCompleted.Inc()
			logger.Info("job completed", "output_ref", final.OutputRef)
		} else {
			_ = os.Remove(h.OutputPath)
			telemetry.JobsFailed.Inc()
			logger.Info("job failed", "error", final.Error)
		}

	default:
		// The worker exited without confirming an outcome. A zero exit code
		// is still inconclusive: absence of confirmation is not success.
		msg := fmt.Sprintf("worker exited with code %d before reporting a result", h.ExitCode())
		_ = s.reg.Update(h.JobID, errorUpdate(msg))
		_ = os.Remove(h.OutputPath)
		telemetry.JobsFailed.Inc()
		logger.Warn("worker exited without terminal status", "exit_code", h.ExitCode(), "wait_err", h.waitErr)
	}
}

// release frees everything the monitor owns for this job.
func (s *Supervisor) release(h *Handle) {
	if err := h.Channel.Remove(); err != nil {
		s.logger.Warn("remove status channel", "job_id", h.JobID, "err", err)
	}
	s.hb.Remove(h.JobID)
	s.removeHandle(h.JobID)
	telemetry.JobsActive.Dec()
	telemetry.ConversionDuration.Observe(time.Since(h.startedAt).Seconds())
}

func errorUpdate(msg string) models.StatusUpdate {
	return models.StatusUpdate{
		Status:  models.StatusPtr(models.StatusError),
		Step:    models.StrPtr(models.StepError),
		Message: models.StrPtr(msg),
		Error:   models.StrPtr(msg),
	}
}
