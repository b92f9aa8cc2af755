package supervisor

import (
	"os/exec"
	"time"

	"pdf-conversion-service/internal/statusfile"
)

// Handle owns one running worker process. It is created at spawn, watched by
// the monitor task, and signalled by the cancellation coordinator. Clients
// never see it.
type Handle struct {
	JobID      string
	InputPath  string
	OutputPath string
	Channel    statusfile.Channel

	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{}
	exitCode  int
	waitErr   error
}

// wait reaps the process exactly once and publishes the exit code.
func (h *Handle) wait() {
	h.waitErr = h.cmd.Wait()
	if state := h.cmd.ProcessState; state != nil {
		h.exitCode = state.ExitCode()
	} else {
		h.exitCode = -1
	}
	close(h.done)
}

// Alive reports whether the process has not yet been reaped.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// waitExit blocks until the process exits or d elapses; it reports whether
// the process exited in time.
func (h *Handle) waitExit(d time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(d):
		return false
	}
}

// ExitCode is valid only after the done channel closed.
func (h *Handle) ExitCode() int {
	return h.exitCode
}
