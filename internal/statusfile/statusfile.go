// Package statusfile implements the status channel between the supervisor
// and a conversion worker as a JSON file that both sides merge-update.
package statusfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pdf-conversion-service/internal/models"
)

// Channel is the out-of-band medium a worker reports progress through. The
// monitor task and the worker contract only depend on this interface, so the
// file backing can be swapped for a pipe or socket without touching either.
type Channel interface {
	// Ref is the reference handed to the worker process.
	Ref() string
	// Merge overlays the non-nil fields of upd onto the channel contents.
	// Fields not mentioned are preserved, including ones this code does not
	// know about.
	Merge(upd models.StatusUpdate) error
	// Read returns the current snapshot. A read racing an in-progress write
	// may fail to parse; callers treat that as transient and keep their last
	// good snapshot.
	Read() (models.StatusUpdate, error)
	// TouchLiveness refreshes the liveness marker consulted by cooperating
	// workers at checkpoints.
	TouchLiveness(t time.Time) error
	// LivenessAge returns how long ago the liveness marker was refreshed,
	// and whether a marker exists at all.
	LivenessAge() (time.Duration, bool)
	// Remove deletes the channel's backing storage.
	Remove() error
}

// File is the file-backed Channel. The status JSON lives at path; the
// liveness marker is a sidecar file whose mtime is the last heartbeat, which
// keeps heartbeat mirroring from racing the worker's read-modify-write
// cycles on the status JSON itself.
type File struct {
	path string
}

var _ Channel = (*File)(nil)

// New wraps an existing status file reference, typically inside the worker
// process which received the path as an argument.
func New(path string) *File {
	return &File{path: path}
}

// Create makes a fresh channel at path seeded with the given update.
func Create(path string, seed models.StatusUpdate) (*File, error) {
	f := &File{path: path}
	data, err := json.Marshal(seed)
	if err != nil {
		return nil, fmt.Errorf("seed status file: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return nil, fmt.Errorf("seed status file: %w", err)
	}
	return f, nil
}

func (f *File) Ref() string {
	return f.path
}

func (f *File) Merge(upd models.StatusUpdate) error {
	current := map[string]any{}
	if data, err := os.ReadFile(f.path); err == nil {
		// A torn or missing file starts the merge from empty rather than
		// failing: the next writer restores the union of fields.
		_ = json.Unmarshal(data, &current)
	}

	patch, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("encode status update: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(patch, &fields); err != nil {
		return fmt.Errorf("encode status update: %w", err)
	}
	for k, v := range fields {
		current[k] = v
	}

	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode status file: %w", err)
	}
	return writeAtomic(f.path, data)
}

func (f *File) Read() (models.StatusUpdate, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return models.StatusUpdate{}, err
	}
	var snap models.StatusUpdate
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.StatusUpdate{}, fmt.Errorf("parse status file: %w", err)
	}
	return snap, nil
}

func (f *File) livenessPath() string {
	return f.path + ".hb"
}

func (f *File) TouchLiveness(t time.Time) error {
	p := f.livenessPath()
	if _, err := os.Stat(p); os.IsNotExist(err) {
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			return err
		}
	}
	return os.Chtimes(p, t, t)
}

func (f *File) LivenessAge() (time.Duration, bool) {
	info, err := os.Stat(f.livenessPath())
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}

func (f *File) Remove() error {
	_ = os.Remove(f.livenessPath())
	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// writeAtomic writes via a temp file and rename so readers never observe a
// truncated file, only stale or complete contents. The temp name is unique
// per writer since the worker and the supervisor both merge into the file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
