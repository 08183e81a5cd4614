// Package matcher compares what the compiler reported with what a test expects.
package matcher

import (
	"strings"

	"compiletest/internal/expect"
)

// Result lists the discrepancies found by Match.
type Result struct {
	// Unexpected holds reportable actual diagnostics in encounter order.
	Unexpected []expect.Error
	// Missing holds unsatisfied expectations in file order.
	Missing []expect.Error
}

// OK reports whether nothing is missing or unexpected.
func (r Result) OK() bool {
	return len(r.Unexpected) == 0 && len(r.Missing) == 0
}

// Match pairs actual diagnostics with expected ones, first fit in file
// order. An expectation without a count absorbs any further matches on its
// line once consumed; one with a count absorbs at most that many. Neither
// slice is modified.
func Match(expected, actual []expect.Error) Result {
	used := make([]int, len(expected))
	expectHelp := expect.HasKind(expected, expect.KindHelp)
	expectNote := expect.HasKind(expected, expect.KindNote)

	var res Result
	for _, a := range actual {
		idx := -1
		for i, e := range expected {
			if used[i] == 0 && matches(e, a) {
				idx = i
				break
			}
		}
		if idx < 0 {
			for i, e := range expected {
				if matches(e, a) && (e.Count == 0 || used[i] < e.Count) {
					idx = i
					break
				}
			}
		}
		if idx >= 0 {
			used[idx]++
			continue
		}
		if reportable(a, expectHelp, expectNote) {
			res.Unexpected = append(res.Unexpected, a)
		}
	}

	for i, e := range expected {
		if used[i] == 0 || (e.Count > 0 && used[i] < e.Count) {
			res.Missing = append(res.Missing, e)
		}
	}
	return res
}

func matches(e, a expect.Error) bool {
	return a.Line == e.Line &&
		(e.Kind == expect.KindNone || e.Kind == a.Kind) &&
		strings.Contains(a.Msg, e.Msg)
}

// reportable decides whether an unmatched diagnostic fails the test. Help
// and notes only count when the test expects at least one of that kind.
func reportable(a expect.Error, expectHelp, expectNote bool) bool {
	switch a.Kind {
	case expect.KindHelp:
		return expectHelp
	case expect.KindNote:
		return expectNote
	case expect.KindError, expect.KindWarning:
		return true
	default:
		return false
	}
}

// ErrorPatterns scans output line by line for patterns in order, advancing
// to the next pattern each time a line contains the current one. It
// returns the patterns never reached.
func ErrorPatterns(patterns []string, output string) []string {
	next := 0
	for _, line := range strings.Split(output, "\n") {
		if next == len(patterns) {
			break
		}
		if strings.Contains(line, strings.TrimSpace(patterns[next])) {
			next++
		}
	}
	return patterns[next:]
}

// ForbiddenPatterns returns the patterns that occur anywhere in output.
func ForbiddenPatterns(patterns []string, output string) []string {
	var found []string
	for _, p := range patterns {
		if strings.Contains(output, p) {
			found = append(found, p)
		}
	}
	return found
}
