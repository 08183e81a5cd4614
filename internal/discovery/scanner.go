package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"compiletest/internal/domain"
)

// IgnoreDirMarker makes the scanner skip the directory containing it.
const IgnoreDirMarker = "compiletest-ignore-dir"

// Scanner scans a suite directory for test files
type Scanner struct {
	skipDirs  map[string]bool
	buildBase string
	runMake   bool
}

// NewScanner creates a new Scanner. Output directories are created under
// buildBase as the suite is walked; runMake switches to Makefile directories.
func NewScanner(buildBase string, runMake bool) *Scanner {
	return &Scanner{
		skipDirs:  map[string]bool{"auxiliary": true},
		buildBase: buildBase,
		runMake:   runMake,
	}
}

// Scan finds all tests in the given suite root
func (s *Scanner) Scan(root string) ([]domain.TestPaths, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	var tests []domain.TestPaths
	if err := s.scanDir(root, "", &tests); err != nil {
		return nil, err
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].File < tests[j].File })
	return tests, nil
}

func (s *Scanner) scanDir(dir, rel string, tests *[]domain.TestPaths) error {
	if exists(filepath.Join(dir, IgnoreDirMarker)) {
		return nil
	}
	// A run-make directory is itself one test; its contents are fixtures.
	if s.runMake && rel != "" && exists(filepath.Join(dir, "Makefile")) {
		parent := filepath.Dir(rel)
		if parent == "." {
			parent = ""
		}
		*tests = append(*tests, domain.TestPaths{File: dir, RelativeDir: parent})
		return s.mkOutputDir(parent)
	}
	if err := s.mkOutputDir(rel); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(dir, name)
		if e.IsDir() {
			if strings.HasPrefix(name, ".") || s.skipDirs[name] {
				continue
			}
			if err := s.scanDir(path, filepath.Join(rel, name), tests); err != nil {
				return err
			}
			continue
		}
		if !s.runMake && IsTestFile(name) {
			*tests = append(*tests, domain.TestPaths{File: path, RelativeDir: rel})
		}
	}
	return nil
}

func (s *Scanner) mkOutputDir(rel string) error {
	if s.buildBase == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(s.buildBase, rel), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// IsTestFile reports whether a file name is a test: a .rs file that is not
// hidden or an editor backup.
func IsTestFile(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "#") || strings.HasPrefix(name, "~") {
		return false
	}
	return strings.HasSuffix(name, ".rs")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
