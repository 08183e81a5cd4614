package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"compiletest/internal/domain"
)

func writeTree(t *testing.T, root string, files []string) {
	t.Helper()
	for _, file := range files {
		fullPath := filepath.Join(root, file)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", file, err)
		}
		if err := os.WriteFile(fullPath, []byte("fn main() {}\n"), 0o644); err != nil {
			t.Fatalf("failed to create file %s: %v", file, err)
		}
	}
}

func TestScanner_Scan(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ui")
	build := t.TempDir()
	writeTree(t, src, []string{
		"hello.rs",
		"borrowck/two-phase.rs",
		"borrowck/two-phase.stderr",
		"borrowck/auxiliary/helper.rs",
		"skipped/compiletest-ignore-dir",
		"skipped/inner.rs",
		".git/config.rs",
		"#autosave.rs",
		"~backup.rs",
		".hidden.rs",
		"notes.txt",
	})

	t.Run("scans test files correctly", func(t *testing.T) {
		results, err := NewScanner(build, false).Scan(src)
		require.NoError(t, err)
		require.Equal(t, []domain.TestPaths{
			{File: filepath.Join(src, "borrowck", "two-phase.rs"), RelativeDir: "borrowck"},
			{File: filepath.Join(src, "hello.rs"), RelativeDir: ""},
		}, results)
	})

	t.Run("creates output directories", func(t *testing.T) {
		_, err := NewScanner(build, false).Scan(src)
		require.NoError(t, err)
		require.DirExists(t, filepath.Join(build, "borrowck"))
		require.NoDirExists(t, filepath.Join(build, "skipped"))
	})

	t.Run("returns error for non-existent directory", func(t *testing.T) {
		_, err := NewScanner("", false).Scan("/non/existent/path")
		require.Error(t, err)
	})

	t.Run("returns error for file instead of directory", func(t *testing.T) {
		_, err := NewScanner("", false).Scan(filepath.Join(src, "hello.rs"))
		require.Error(t, err)
	})
}

func TestScanner_RunMake(t *testing.T) {
	src := filepath.Join(t.TempDir(), "run-make")
	writeTree(t, src, []string{
		"simple/Makefile",
		"simple/foo.rs",
		"group/nested/Makefile",
		"group/nested/bar.rs",
		"stray.rs",
	})

	results, err := NewScanner(t.TempDir(), true).Scan(src)
	require.NoError(t, err)
	require.Equal(t, []domain.TestPaths{
		{File: filepath.Join(src, "group", "nested"), RelativeDir: "group"},
		{File: filepath.Join(src, "simple"), RelativeDir: ""},
	}, results)
	require.Equal(t, "nested", results[0].Stem())
}

func TestIsTestFile(t *testing.T) {
	tests := map[string]bool{
		"foo.rs":     true,
		"foo.stderr": false,
		".foo.rs":    false,
		"#foo.rs":    false,
		"~foo.rs":    false,
		"foo.rs.bak": false,
	}
	for name, want := range tests {
		if got := IsTestFile(name); got != want {
			t.Errorf("IsTestFile(%q) = %v, want %v", name, got, want)
		}
	}
}
