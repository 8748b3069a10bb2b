// Package sink writes rendered output files. Forcing files are read by a
// downstream model on its own schedule, so a partially written file is
// worse than a stale one.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes output atomically: the bytes go to a temp file in the
// target directory, which is then renamed over the destination.
type FileSink struct {
	// Perm is the mode of created files. Zero means 0644.
	Perm os.FileMode
}

// NewFileSink returns a sink writing files with default permissions.
func NewFileSink() *FileSink { return &FileSink{} }

// Write stores data at path, replacing any existing file. On error the
// destination is left untouched.
func (s *FileSink) Write(path string, data []byte) error {
	perm := s.Perm
	if perm == 0 {
		perm = 0o644
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
