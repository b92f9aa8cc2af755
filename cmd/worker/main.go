package main

import (
	"errors"
	"fmt"
	"os"

	"pdf-conversion-service/internal/config"
	"pdf-conversion-service/internal/log"
	"pdf-conversion-service/internal/worker"
)

// The worker contract: exactly four positional arguments, progress reported
// through merge-writes into the status channel.
func main() {
	if len(os.Args) != 5 {
		fmt.Fprintln(os.Stderr, "usage: worker <job-id> <input-path> <output-path> <status-file>")
		os.Exit(2)
	}

	cfg := config.Load()
	logger := log.New(cfg.Env == "dev")

	err := worker.Run(logger, worker.Options{
		JobID:            os.Args[1],
		InputPath:        os.Args[2],
		OutputPath:       os.Args[3],
		StatusRef:        os.Args[4],
		HeartbeatTimeout: cfg.HeartbeatTimeout,
	})
	switch {
	case err == nil, errors.Is(err, worker.ErrCancelled):
		// A cooperative cancellation exit is clean; the supervisor already
		// holds the terminal state.
	default:
		os.Exit(1)
	}
}
