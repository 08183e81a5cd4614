package discovery

import (
	"testing"

	"compiletest/internal/domain"
)

func TestFilter_Match(t *testing.T) {
	names := []string{
		"[ui] ui/borrowck/two-phase.rs",
		"[ui] ui/borrowck/two-phase-cannot-nest.rs",
		"[ui] ui/hello.rs",
		"[ui (nll)] ui/hello.rs#a",
	}

	tests := []struct {
		name     string
		pattern  string
		exact    bool
		expected int // Expected number of matches
	}{
		{name: "empty pattern returns all", pattern: "", expected: 4},
		{name: "simple contains match", pattern: "borrowck", expected: 2},
		{name: "revision suffix", pattern: "#a", expected: 1},
		{name: "wildcard pattern matches suffix", pattern: "*nest.rs", expected: 1},
		{name: "wildcard on the path part", pattern: "ui/borrowck/*", expected: 2},
		{name: "wildcard pattern matches substring", pattern: "*two*", expected: 2},
		{name: "ordered parts", pattern: "*ui*hello*", expected: 2},
		{name: "exact", pattern: "[ui] ui/hello.rs", exact: true, expected: 1},
		{name: "exact requires the whole name", pattern: "hello", exact: true, expected: 0},
		{name: "no matches", pattern: "*NonExistent*", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewFilter(tt.pattern, tt.exact)
			count := 0
			for _, n := range names {
				if filter.Match(n) {
					count++
				}
			}
			if count != tt.expected {
				t.Errorf("expected %d matches, got %d", tt.expected, count)
			}
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	tests := []domain.Test{{Name: "[ui] ui/a.rs"}, {Name: "[ui] ui/b.rs"}}
	got := NewFilter("a.rs", false).Apply(tests)
	if len(got) != 1 || got[0].Name != "[ui] ui/a.rs" {
		t.Errorf("unexpected selection: %v", got)
	}
	if got := NewFilter("", false).Apply(tests); len(got) != 2 {
		t.Errorf("empty filter should keep everything, got %d", len(got))
	}
}
