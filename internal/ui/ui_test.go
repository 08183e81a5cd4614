package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"compiletest/internal/domain"
)

func init() {
	color.NoColor = true
}

type memoryStorage struct {
	saved *domain.TestResultsOutput
	err   error
}

func (m *memoryStorage) Save(output *domain.TestResultsOutput) error {
	m.saved = output
	return m.err
}

func (m *memoryStorage) Load() (*domain.TestResultsOutput, error) {
	return m.saved, m.err
}

func TestFormatter_PrintMetaStats(t *testing.T) {
	var buf bytes.Buffer
	output := &domain.TestResultsOutput{
		Meta: domain.TestResultsMeta{
			Mode:            "ui",
			Suite:           "ui",
			TotalTests:      12345,
			PassedTests:     12340,
			FailedTests:     3,
			IgnoredTests:    2,
			DurationSeconds: 75,
			Workers:         8,
			Timestamp:       "not a timestamp",
		},
		Details: []domain.TestFailure{
			{TestName: "[ui] ui/borrowck/a.rs#r1", Revision: "r1", Message: "test run failed!"},
			{TestName: "[ui] ui/borrowck/a.rs#r2", Revision: "r2", Message: "compilation failed!"},
			{TestName: "[ui] ui/b.rs", Message: "output differs from the reference files"},
		},
	}
	NewFormatter(&buf).PrintMetaStats(output)
	got := buf.String()

	for _, want := range []string{
		"12,345",
		"1m15s",
		"not a timestamp",
		"✗ 3 test(s) failed",
		"└── ui\n",
		"    ├── b.rs\n",
		"    │   └── output differs from the reference files\n",
		"    └── borrowck\n",
		"        └── a.rs\n",
		"            ├── #r1: test run failed!\n",
		"            └── #r2: compilation failed!\n",
	} {
		require.Contains(t, got, want)
	}

	buf.Reset()
	NewFormatter(&buf).PrintMetaStats(&domain.TestResultsOutput{})
	require.Contains(t, buf.String(), "All tests passed!")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12300 * time.Millisecond, "12.3s"},
		{245 * time.Second, "4m05s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
	require.Equal(t, "3 minutes ago", FormatTimestamp(time.Now().Add(-3*time.Minute).Format(time.RFC3339)))
}

func TestFormatter_PrintFailure(t *testing.T) {
	var buf bytes.Buffer
	status := 101
	NewFormatter(&buf).PrintFailure(domain.TestFailure{
		TestName:   "[ui] ui/a.rs",
		Revision:   "r1",
		Message:    "output differs from the reference files",
		Mismatches: []string{"diff of stderr:"},
		Command:    "rustc a.rs",
		Status:     &status,
		Stderr:     "error: boom",
	})
	got := buf.String()
	require.Contains(t, got, "---- [ui] ui/a.rs ----")
	require.Contains(t, got, "diff of stderr:\n")
	require.Contains(t, got, "error in revision `r1`: output differs from the reference files")
	require.Contains(t, got, "status: exit code: 101\ncommand: rustc a.rs\n")
	require.Contains(t, got, "error: boom")
}

func TestFormatter_PrintTestList(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter(&buf).PrintTestList([]domain.Test{
		{Name: "[ui] ui/a.rs"},
		{Name: "[ui] ui/b.rs", Ignore: true, IgnoreReason: "up to date"},
	}, map[string]bool{"[ui] ui/a.rs": true})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "Found 2 test(s):", lines[0])
	require.Equal(t, "├── [ui] ui/a.rs [F]", lines[2])
	require.Equal(t, "└── [ui] ui/b.rs (ignored: up to date)", lines[3])
}

func TestToggleResolved(t *testing.T) {
	results := &domain.TestResultsOutput{Details: []domain.TestFailure{{TestName: "a"}, {TestName: "b"}}}
	st := &memoryStorage{}

	require.NoError(t, ToggleResolved(st, results, 1))
	require.True(t, st.saved.Details[1].Resolved)
	require.Equal(t, 1, CountUnresolved(results))

	require.NoError(t, ToggleResolved(st, results, 1))
	require.Equal(t, 2, CountUnresolved(results))

	st.err = errors.New("disk full")
	require.Error(t, ToggleResolved(st, results, 0))
}

func TestFormatFailureDetails(t *testing.T) {
	status := 1
	got := formatFailureDetails(domain.TestFailure{
		TestName:   "[ui] ui/a.rs",
		FilePath:   "/src/ui/a.rs",
		Class:      "mismatch",
		Message:    "output differs",
		Mismatches: []string{"-[expected]"},
		Command:    "rustc",
		Status:     &status,
		Stdout:     strings.Repeat("x\n", maxOutputLines+5),
	})
	require.Contains(t, got, "Kind: mismatch")
	require.Contains(t, got, "Status:[white] 1")
	require.Contains(t, got, "... and 5 more lines")
	// Brackets in user text must not be read as color tags.
	require.Contains(t, got, "-[expected[]")
	require.Contains(t, got, "Test: [ui[] ui/a.rs")
}
