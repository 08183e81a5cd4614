package domain

import "path/filepath"

// TestPaths locates a test file inside the suite
type TestPaths struct {
	File        string // Full path to the test file (or run-make directory)
	RelativeDir string // Directory of the file relative to the suite root
}

// Stem is the file name without its extension
func (p TestPaths) Stem() string {
	base := filepath.Base(p.File)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Test is one schedulable unit: a test file, or one revision of it
type Test struct {
	Name         string    `json:"name"`
	Paths        TestPaths `json:"paths"`
	Revision     string    `json:"revision,omitempty"`
	Ignore       bool      `json:"ignore,omitempty"`
	IgnoreReason string    `json:"ignore_reason,omitempty"`
	ShouldFail   bool      `json:"should_fail,omitempty"`
}
