package discovery

import (
	"path/filepath"
	"strings"

	"compiletest/internal/domain"
)

// Filter selects tests by name
type Filter struct {
	pattern string
	exact   bool
}

// NewFilter creates a new Filter. An empty pattern selects everything; with
// exact the pattern must equal the full test name.
func NewFilter(pattern string, exact bool) *Filter {
	return &Filter{pattern: pattern, exact: exact}
}

// Match reports whether a test name is selected.
// Supports substrings, and wildcards like "*borrowck*" or "ui/*.rs"
func (f *Filter) Match(name string) bool {
	if f.pattern == "" {
		return true
	}
	if f.exact {
		return name == f.pattern
	}
	if !strings.ContainsAny(f.pattern, "*?") {
		return strings.Contains(name, f.pattern)
	}

	// Names carry a "[mode] " prefix; try the pattern against the path part too.
	path := name
	if _, rest, ok := strings.Cut(name, "] "); ok {
		path = rest
	}
	for _, candidate := range []string{name, path, filepath.Base(path)} {
		if matched, err := filepath.Match(f.pattern, candidate); err == nil && matched {
			return true
		}
	}

	// Fall back to an ordered match of the literal parts between wildcards.
	parts := strings.FieldsFunc(f.pattern, func(r rune) bool { return r == '*' || r == '?' })
	if len(parts) == 0 {
		return true
	}
	rest := name
	for _, part := range parts {
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return true
}

// Apply keeps the selected tests
func (f *Filter) Apply(tests []domain.Test) []domain.Test {
	if f.pattern == "" {
		return tests
	}
	var filtered []domain.Test
	for _, t := range tests {
		if f.Match(t.Name) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
