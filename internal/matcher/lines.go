package matcher

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Wildcard leaves part of a debugger check line unspecified.
const Wildcard = "[...]"

// CheckLines looks for checks in output in order, one output line per
// check. It returns the index of the first check not found, or -1.
func CheckLines(output string, checks []string) int {
	next := 0
	for _, line := range strings.Split(output, "\n") {
		if next >= len(checks) {
			break
		}
		if CheckLine(line, checks[next]) {
			next++
		}
	}
	if next < len(checks) {
		return next
	}
	return -1
}

// CheckLine matches one output line against a check that may contain
// [...] wildcards. Fragments must appear in order.
func CheckLine(line, check string) bool {
	line = strings.TrimSpace(line)
	check = strings.TrimSpace(check)
	startAnywhere := strings.HasPrefix(check, Wildcard)
	endAnywhere := strings.HasSuffix(check, Wildcard)

	var fragments []string
	for _, f := range strings.Split(check, Wildcard) {
		if f != "" {
			fragments = append(fragments, f)
		}
	}
	if len(fragments) == 0 {
		return true
	}

	rest := line
	if startAnywhere {
		pos := strings.Index(rest, fragments[0])
		if pos < 0 {
			return false
		}
		rest = rest[pos+len(fragments[0]):]
		fragments = fragments[1:]
	}
	for _, f := range fragments {
		pos := strings.Index(rest, f)
		if pos < 0 {
			return false
		}
		rest = rest[pos+len(f):]
	}
	return endAnywhere || rest == ""
}

// UnifiedDiff renders a unified diff of expected against actual with three
// lines of context. It returns "" when the texts are equal.
func UnifiedDiff(expected, actual, fromFile, toFile string) string {
	if expected == actual {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	})
	if err != nil {
		return err.Error()
	}
	return diff
}
