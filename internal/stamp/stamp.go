// Package stamp decides whether a previously passing test can be skipped.
package stamp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Stamp is the newest modification time over a set of inputs.
type Stamp struct {
	time time.Time
}

// FromPath stamps one file. Missing files count as infinitely old.
func FromPath(path string) Stamp {
	var s Stamp
	s.AddPath(path)
	return s
}

// AddPath folds the modification time of path into s.
func (s *Stamp) AddPath(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	s.add(info.ModTime())
}

// AddDir folds every regular file below dir into s.
func (s *Stamp) AddDir(dir string) {
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		s.add(info.ModTime())
		return nil
	})
}

// Merge folds another stamp into s.
func (s *Stamp) Merge(o Stamp) {
	s.add(o.time)
}

func (s *Stamp) add(t time.Time) {
	if t.After(s.time) {
		s.time = t
	}
}

// Before reports whether s is strictly older than o.
func (s Stamp) Before(o Stamp) bool {
	return s.time.Before(o.time)
}

// Time returns the newest modification time, or the zero time.
func (s Stamp) Time() time.Time {
	return s.time
}

// IsUpToDate reports whether the stamp file at stampPath records hash and
// is newer than every input, including the common ones.
func IsUpToDate(stampPath, hash string, common Stamp, inputs []string) bool {
	contents, err := os.ReadFile(stampPath)
	if err != nil {
		return false
	}
	if string(contents) != hash {
		return false
	}

	s := common
	for _, in := range inputs {
		s.AddPath(in)
	}
	return s.Before(FromPath(stampPath))
}

// Write records a successful run.
func Write(stampPath, hash string) error {
	if err := os.MkdirAll(filepath.Dir(stampPath), 0o755); err != nil {
		return fmt.Errorf("failed to create stamp directory: %w", err)
	}
	if err := os.WriteFile(stampPath, []byte(hash), 0o644); err != nil {
		return fmt.Errorf("failed to write stamp: %w", err)
	}
	return nil
}

// Remove deletes a stamp so the next run re-executes the test.
func Remove(stampPath string) error {
	if err := os.Remove(stampPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stamp: %w", err)
	}
	return nil
}
