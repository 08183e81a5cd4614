package matcher

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"compiletest/internal/expect"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name           string
		expected       []expect.Error
		actual         []expect.Error
		wantUnexpected []expect.Error
		wantMissing    []expect.Error
	}{
		{
			name:     "substring match",
			expected: []expect.Error{{Line: 5, Kind: expect.KindError, Msg: "cannot borrow"}},
			actual:   []expect.Error{{Line: 5, Kind: expect.KindError, Msg: "cannot borrow `x` as mutable"}},
		},
		{
			name:     "unset kind matches any kind",
			expected: []expect.Error{{Line: 2, Msg: "unused"}},
			actual:   []expect.Error{{Line: 2, Kind: expect.KindWarning, Msg: "unused variable"}},
		},
		{
			name:           "wrong line",
			expected:       []expect.Error{{Line: 5, Kind: expect.KindError, Msg: "boom"}},
			actual:         []expect.Error{{Line: 6, Kind: expect.KindError, Msg: "boom"}},
			wantUnexpected: []expect.Error{{Line: 6, Kind: expect.KindError, Msg: "boom"}},
			wantMissing:    []expect.Error{{Line: 5, Kind: expect.KindError, Msg: "boom"}},
		},
		{
			name:     "help expected makes other help reportable",
			expected: []expect.Error{{Line: 5, Kind: expect.KindHelp, Msg: "foo"}},
			actual:   []expect.Error{{Line: 9, Kind: expect.KindHelp, Msg: "bar"}},
			wantUnexpected: []expect.Error{
				{Line: 9, Kind: expect.KindHelp, Msg: "bar"},
			},
			wantMissing: []expect.Error{{Line: 5, Kind: expect.KindHelp, Msg: "foo"}},
		},
		{
			name:     "help and notes ignored when none expected",
			expected: []expect.Error{{Line: 1, Kind: expect.KindError, Msg: "e"}},
			actual: []expect.Error{
				{Line: 1, Kind: expect.KindError, Msg: "e"},
				{Line: 1, Kind: expect.KindHelp, Msg: "h"},
				{Line: 1, Kind: expect.KindNote, Msg: "n"},
				{Line: 1, Kind: expect.KindSuggestion, Msg: "s"},
				{Line: 1, Kind: expect.KindNone, Msg: "continuation"},
			},
		},
		{
			name:     "entry without count absorbs repeats",
			expected: []expect.Error{{Line: 3, Kind: expect.KindError, Msg: "dup"}},
			actual: []expect.Error{
				{Line: 3, Kind: expect.KindError, Msg: "dup"},
				{Line: 3, Kind: expect.KindError, Msg: "dup"},
			},
		},
		{
			name:     "count requires exact occurrences",
			expected: []expect.Error{{Line: 3, Kind: expect.KindError, Msg: "dup", Count: 2}},
			actual:   []expect.Error{{Line: 3, Kind: expect.KindError, Msg: "dup"}},
			wantMissing: []expect.Error{
				{Line: 3, Kind: expect.KindError, Msg: "dup", Count: 2},
			},
		},
		{
			name:     "count caps occurrences",
			expected: []expect.Error{{Line: 3, Kind: expect.KindError, Msg: "dup", Count: 1}},
			actual: []expect.Error{
				{Line: 3, Kind: expect.KindError, Msg: "dup"},
				{Line: 3, Kind: expect.KindError, Msg: "dup again"},
			},
			wantUnexpected: []expect.Error{{Line: 3, Kind: expect.KindError, Msg: "dup again"}},
		},
		{
			name: "first fit prefers unconsumed entries",
			expected: []expect.Error{
				{Line: 4, Kind: expect.KindError, Msg: "a"},
				{Line: 4, Kind: expect.KindError, Msg: "ab"},
			},
			actual: []expect.Error{
				{Line: 4, Kind: expect.KindError, Msg: "abc"},
				{Line: 4, Kind: expect.KindError, Msg: "abd"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Match(tt.expected, tt.actual)
			if diff := cmp.Diff(tt.wantUnexpected, res.Unexpected); diff != "" {
				t.Errorf("unexpected mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantMissing, res.Missing); diff != "" {
				t.Errorf("missing mismatch (-want +got):\n%s", diff)
			}
			if res.OK() != (len(tt.wantUnexpected) == 0 && len(tt.wantMissing) == 0) {
				t.Errorf("OK() = %v inconsistent with result", res.OK())
			}
		})
	}
}

func TestMatch_Idempotent(t *testing.T) {
	expected := []expect.Error{
		{Line: 1, Kind: expect.KindError, Msg: "x"},
		{Line: 2, Kind: expect.KindNote, Msg: "y"},
	}
	actual := []expect.Error{
		{Line: 1, Kind: expect.KindError, Msg: "x!"},
		{Line: 3, Kind: expect.KindNote, Msg: "z"},
	}
	first := Match(expected, actual)
	second := Match(expected, actual)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second match differs (-first +second):\n%s", diff)
	}
	if expected[0].Msg != "x" || actual[0].Msg != "x!" {
		t.Error("inputs were modified")
	}
}

func TestErrorPatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		output   []string
		missing  []string
	}{
		{name: "in order", patterns: []string{"foo", "bar"}, output: []string{"xfoo", "ybar"}},
		{name: "out of order", patterns: []string{"foo", "bar"}, output: []string{"ybar", "xfoo"}, missing: []string{"bar"}},
		{name: "none found", patterns: []string{"foo", "bar"}, output: []string{"ybar"}, missing: []string{"foo", "bar"}},
		{name: "one pattern per line", patterns: []string{"a", "b"}, output: []string{"ab"}, missing: []string{"b"}},
		{name: "patterns are trimmed", patterns: []string{"  foo "}, output: []string{"xfoox"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorPatterns(tt.patterns, strings.Join(tt.output, "\n"))
			if len(got) != len(tt.missing) {
				t.Fatalf("expected missing %v, got %v", tt.missing, got)
			}
			for i := range got {
				if got[i] != tt.missing[i] {
					t.Errorf("expected %s, got %s", tt.missing[i], got[i])
				}
			}
		})
	}
}

func TestErrorPatterns_OrderViolated(t *testing.T) {
	// "bar" precedes "foo", so after "foo" is found no line is left for "bar".
	got := ErrorPatterns([]string{"foo", "bar"}, "ybar\nxfoo")
	if len(got) == 0 {
		t.Fatal("expected failure when order is violated")
	}
}

func TestForbiddenPatterns(t *testing.T) {
	got := ForbiddenPatterns([]string{"secret", "absent"}, "leaked a secret")
	if len(got) != 1 || got[0] != "secret" {
		t.Errorf("expected [secret], got %v", got)
	}
}

func TestCheckLine(t *testing.T) {
	tests := []struct {
		line, check string
		want        bool
	}{
		{"$1 = 5", "$1 = 5", true},
		{"$1 = 5", "$1 = 6", false},
		{"$1 = Some {x: 1, y: 2}", "$1 = Some {x: [...], y: 2}", true},
		{"prefix $1 = 5", "[...]$1 = 5", true},
		{"$1 = 5 trailing", "$1 = 5[...]", true},
		{"$1 = 5 trailing", "$1 = 5", false},
		{"anything", "[...]", true},
		{"  padded  ", "padded", true},
	}
	for _, tt := range tests {
		if got := CheckLine(tt.line, tt.check); got != tt.want {
			t.Errorf("CheckLine(%q, %q) = %v, want %v", tt.line, tt.check, got, tt.want)
		}
	}
}

func TestCheckLines(t *testing.T) {
	output := "Breakpoint 1\n$1 = 1\nnoise\n$2 = 2\n"
	if idx := CheckLines(output, []string{"$1 = 1", "$2 = 2"}); idx != -1 {
		t.Errorf("expected all checks found, got index %d", idx)
	}
	if idx := CheckLines(output, []string{"$2 = 2", "$1 = 1"}); idx != 1 {
		t.Errorf("expected second check missing, got index %d", idx)
	}
	if idx := CheckLines(output, nil); idx != -1 {
		t.Errorf("no checks always pass, got %d", idx)
	}
}

func TestUnifiedDiff(t *testing.T) {
	if d := UnifiedDiff("same\n", "same\n", "a", "b"); d != "" {
		t.Errorf("expected empty diff, got %q", d)
	}
	d := UnifiedDiff("one\ntwo\n", "one\nthree\n", "expected", "actual")
	for _, want := range []string{"--- expected", "+++ actual", "-two", "+three"} {
		if !strings.Contains(d, want) {
			t.Errorf("diff missing %q:\n%s", want, d)
		}
	}
}
