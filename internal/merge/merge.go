// Package merge combines DOCX documents synchronously. Unlike conversion it
// runs inside the supervisor process: inputs are already validated local
// files and the work is bounded, so no worker process is involved.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"pdf-conversion-service/internal/convert"
)

// ErrTooFewInputs is returned when fewer than two documents are given.
var ErrTooFewInputs = errors.New("merge: at least two documents required")

// Files merges the given DOCX files into one document at outputPath, with a
// page break between consecutive documents. Inputs are read and validated in
// parallel; any unreadable input fails the whole merge and no partial output
// is left behind.
func Files(ctx context.Context, inputs []string, outputPath string) error {
	if len(inputs) < 2 {
		return ErrTooFewInputs
	}

	bodies := make([]string, len(inputs))
	g, _ := errgroup.WithContext(ctx)
	for i, path := range inputs {
		i, path := i, path
		g.Go(func() error {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("input %d: %w", i+1, err)
			}
			body, err := convert.ReadDocxBody(path)
			if err != nil {
				return fmt.Errorf("input %d: %w", i+1, err)
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var combined strings.Builder
	for i, body := range bodies {
		if i > 0 {
			combined.WriteString(convert.PageBreakXML)
		}
		combined.WriteString(body)
	}

	if err := convert.WriteDocxBody(outputPath, combined.String()); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("write merged document: %w", err)
	}
	return nil
}
