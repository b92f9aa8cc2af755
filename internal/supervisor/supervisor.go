// Package supervisor runs conversion jobs as isolated worker processes and
// guarantees every job reaches a terminal state: it launches workers, mirrors
// their out-of-band status reports into the registry, and escalates
// cancellation up to SIGKILL when a worker will not cooperate.
package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"pdf-conversion-service/internal/config"
	"pdf-conversion-service/internal/heartbeat"
	"pdf-conversion-service/internal/models"
	"pdf-conversion-service/internal/registry"
	"pdf-conversion-service/internal/statusfile"
	"pdf-conversion-service/internal/telemetry"
)

// Supervisor owns the process handles for all live jobs. The registry and
// heartbeat tracker are shared with the HTTP layer; handles are not.
type Supervisor struct {
	cfg    config.Config
	reg    *registry.Registry
	hb     *heartbeat.Tracker
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

func New(cfg config.Config, reg *registry.Registry, hb *heartbeat.Tracker, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		reg:     reg,
		hb:      hb,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Start spawns a worker for the job and begins monitoring it. A failure to
// start the process is surfaced here, synchronously; it never reaches the
// registry through polling.
func (s *Supervisor) Start(id, inputPath, outputPath string) error {
	if rec, err := s.reg.Get(id); err == nil && rec.Status.Terminal() {
		// Cancellation raced the launch; the job is already resolved and a
		// worker would only burn resources producing an artifact finalize
		// deletes again.
		s.logger.Info("job terminal before launch, not spawning", "job_id", id, "status", rec.Status)
		return nil
	}
	h, err := s.spawn(id, inputPath, outputPath)
	if err != nil {
		return err
	}
	telemetry.JobsActive.Inc()
	go h.wait()
	go s.monitor(h)
	return nil
}

// spawn creates a fresh status channel seeded as converting and launches the
// worker with the four positional arguments of the worker contract.
func (s *Supervisor) spawn(id, inputPath, outputPath string) (*Handle, error) {
	chPath := filepath.Join(s.cfg.WorkDir, id+".status.json")
	ch, err := statusfile.Create(chPath, models.StatusUpdate{
		Status:   models.StatusPtr(models.StatusConverting),
		Progress: models.IntPtr(0),
		Step:     models.StrPtr(models.StepInitialization),
		Message:  models.StrPtr("Starting conversion..."),
	})
	if err != nil {
		return nil, fmt.Errorf("create status channel: %w", err)
	}

	cmd := exec.Command(s.cfg.WorkerBin, id, inputPath, outputPath, ch.Ref())
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = ch.Remove()
		return nil, fmt.Errorf("launch worker: %w", err)
	}

	h := &Handle{
		JobID:      id,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Channel:    ch,
		cmd:        cmd,
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}
	s.mu.Lock()
	s.handles[id] = h
	s.mu.Unlock()

	s.logger.Info("worker spawned", "job_id", id, "pid", cmd.Process.Pid)
	return h, nil
}

func (s *Supervisor) handleFor(id string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	return h, ok
}

func (s *Supervisor) removeHandle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, id)
}

// Active reports whether a live process handle exists for the job.
func (s *Supervisor) Active(id string) bool {
	_, ok := s.handleFor(id)
	return ok
}
