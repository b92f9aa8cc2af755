// Package worker implements the conversion worker process. It is launched by
// the supervisor with four positional arguments (job id, input path, output
// path, status channel reference), reports progress through merge-writes into
// the channel, and consults the channel at checkpoints for cancellation
// intent and client liveness.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pdf-conversion-service/internal/convert"
	"pdf-conversion-service/internal/models"
	"pdf-conversion-service/internal/statusfile"
)

var (
	// ErrCancelled means the supervisor wrote cancellation intent; the worker
	// stops quietly without reporting a terminal status of its own.
	ErrCancelled = errors.New("worker: job cancelled")
	// ErrAbandoned means the owning client stopped heartbeating; reported as
	// a failure distinct from user cancellation.
	ErrAbandoned = errors.New("worker: client abandoned job")
)

// Options configures one worker run.
type Options struct {
	JobID      string
	InputPath  string
	OutputPath string
	StatusRef  string
	// HeartbeatTimeout is the staleness window for the abandonment check.
	// Zero disables the check.
	HeartbeatTimeout time.Duration
}

type runner struct {
	opts    Options
	ch      *statusfile.File
	logger  *slog.Logger
	started time.Time
	// hbSeen latches once a liveness marker has been observed, so clients
	// that never heartbeat are not treated as abandoned.
	hbSeen bool
}

// Run executes the whole conversion and owns the worker side of the status
// protocol: the last write is either a terminal completed/error record, or
// nothing beyond what the supervisor already wrote when cancelled.
func Run(logger *slog.Logger, opts Options) error {
	r := &runner{
		opts:    opts,
		ch:      statusfile.New(opts.StatusRef),
		logger:  logger.With("job_id", opts.JobID),
		started: time.Now(),
	}

	err := r.convert()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCancelled):
		r.logger.Info("cancellation observed, aborting")
		_ = os.Remove(opts.OutputPath)
		return err
	default:
		msg := fmt.Sprintf("Conversion failed: %v", err)
		r.report(models.StatusUpdate{
			Status:  models.StatusPtr(models.StatusError),
			Step:    models.StrPtr(models.StepError),
			Message: models.StrPtr(msg),
			Error:   models.StrPtr(err.Error()),
		})
		// No partial artifacts may outlive a failed job.
		_ = os.Remove(opts.OutputPath)
		_ = os.Remove(opts.InputPath)
		return err
	}
}

func (r *runner) convert() error {
	r.progress(5, models.StepUploadComplete, "File uploaded successfully")
	r.progress(10, models.StepInitializing, "Initializing PDF converter...")
	if err := r.checkpoint(); err != nil {
		return err
	}

	r.progress(20, models.StepOpeningDocument, "Opening PDF document...")
	doc, err := convert.Open(r.opts.InputPath, false)
	if err != nil {
		return r.fallback(err)
	}
	defer doc.Close()

	r.reportTotal(doc.PageCount())
	r.progress(30, models.StepAnalyzingStructure, "Analyzing document structure...")
	r.progress(40, models.StepPreparingConversion, "Preparing conversion parameters...")
	if err := r.checkpoint(); err != nil {
		return err
	}

	// Primary path maps page progress onto 50-80.
	if err := doc.Convert(r.opts.OutputPath, r.pageFunc(50, 30, models.StepProcessingPages)); err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, ErrAbandoned) {
			return err
		}
		return r.fallback(err)
	}

	return r.finalize()
}

// fallback retries the conversion with the lenient parser after a strict
// failure. Page progress restarts at 55, the single permitted progress reset.
func (r *runner) fallback(cause error) error {
	if err := r.checkpoint(); err != nil {
		return err
	}
	r.logger.Warn("strict conversion failed, retrying leniently", "err", cause)
	r.report(models.StatusUpdate{
		Message: models.StrPtr("Primary conversion failed, retrying in compatibility mode..."),
	})

	doc, err := convert.Open(r.opts.InputPath, true)
	if err != nil {
		return fmt.Errorf("conversion failed (%v) and fallback could not open document: %w", cause, err)
	}
	defer doc.Close()

	r.reportTotal(doc.PageCount())
	if err := doc.Convert(r.opts.OutputPath, r.pageFunc(55, 25, models.StepProcessingPagesFallback)); err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, ErrAbandoned) {
			return err
		}
		return fmt.Errorf("conversion failed in both strict and compatibility mode: %w", err)
	}

	return r.finalize()
}

func (r *runner) finalize() error {
	r.progress(90, models.StepFinalizing, "Finalizing output document...")
	if err := r.checkpoint(); err != nil {
		return err
	}
	if _, err := os.Stat(r.opts.OutputPath); err != nil {
		return errors.New("output file was not created")
	}
	r.report(models.StatusUpdate{
		Status:    models.StatusPtr(models.StatusCompleted),
		Progress:  models.IntPtr(100),
		Step:      models.StrPtr(models.StepCompleted),
		Message:   models.StrPtr("Conversion completed successfully!"),
		OutputRef: models.StrPtr(filepath.Base(r.opts.OutputPath)),
	})
	r.logger.Info("conversion completed", "output", r.opts.OutputPath)
	return nil
}

// pageFunc builds the per-page checkpoint callback mapping page n/total onto
// [base, base+span] progress.
func (r *runner) pageFunc(base, span int, step string) convert.PageFunc {
	return func(page, total int) error {
		if err := r.checkpoint(); err != nil {
			return err
		}
		p := base + int(float64(span)*float64(page)/float64(total))
		r.report(models.StatusUpdate{
			Progress:    models.IntPtr(p),
			Step:        models.StrPtr(step),
			Message:     models.StrPtr(fmt.Sprintf("Processing page %d/%d...", page, total)),
			CurrentPage: models.IntPtr(page),
			TotalPages:  models.IntPtr(total),
			ETA:         models.StrPtr(etaString(r.started, page, total)),
		})
		return nil
	}
}

// checkpoint is the liveness/cancellation oracle consulted before expensive
// work: cancellation intent beats everything, then heartbeat staleness.
func (r *runner) checkpoint() error {
	if snap, err := r.ch.Read(); err == nil && snap.Status != nil && *snap.Status == models.StatusCancelled {
		return ErrCancelled
	}
	if r.opts.HeartbeatTimeout <= 0 {
		return nil
	}
	age, ok := r.ch.LivenessAge()
	if !ok {
		// The client has never heartbeated; only enforce staleness once it
		// has started to.
		if r.hbSeen {
			return ErrAbandoned
		}
		return nil
	}
	r.hbSeen = true
	if age > r.opts.HeartbeatTimeout {
		return fmt.Errorf("%w: no heartbeat for %s", ErrAbandoned, age.Round(time.Second))
	}
	return nil
}

// reportTotal publishes the page count before page processing begins.
func (r *runner) reportTotal(total int) {
	r.report(models.StatusUpdate{TotalPages: models.IntPtr(total)})
}

func (r *runner) progress(p int, step, message string) {
	r.report(models.StatusUpdate{
		Progress: models.IntPtr(p),
		Step:     models.StrPtr(step),
		Message:  models.StrPtr(message),
	})
}

// report merge-writes into the channel. A failed write is logged and skipped;
// the next checkpoint retries with fresher state.
func (r *runner) report(upd models.StatusUpdate) {
	if err := r.ch.Merge(upd); err != nil {
		r.logger.Warn("status write failed", "err", err)
	}
}

func etaString(start time.Time, page, total int) string {
	if page <= 0 || total <= page {
		return ""
	}
	perPage := time.Since(start) / time.Duration(page)
	remaining := perPage * time.Duration(total-page)
	return fmt.Sprintf("about %ds remaining", int(remaining.Seconds()))
}
