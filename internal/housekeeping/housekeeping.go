// Package housekeeping purges orphaned artifacts left behind by earlier runs.
package housekeeping

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// Purge removes regular files older than retention from each dir, scanning
// the dirs in parallel. Missing dirs are ignored; it is meant to run before
// the server accepts jobs.
func Purge(ctx context.Context, logger *slog.Logger, retention time.Duration, dirs ...string) error {
	cutoff := time.Now().Add(-retention)
	g, _ := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			entries, err := os.ReadDir(dir)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				info, err := e.Info()
				if err != nil {
					continue
				}
				if info.ModTime().Before(cutoff) {
					path := filepath.Join(dir, e.Name())
					if err := os.Remove(path); err != nil {
						logger.Warn("purge stale artifact", "path", path, "err", err)
					} else {
						logger.Info("purged stale artifact", "path", path)
					}
				}
			}
			return nil
		})
	}
	return g.Wait()
}
