package parser

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"compiletest/internal/expect"
)

// Diagnostic is one line of `--error-format json` output.
type Diagnostic struct {
	Message  string           `json:"message"`
	Code     *DiagnosticCode  `json:"code"`
	Level    string           `json:"level"`
	Spans    []DiagnosticSpan `json:"spans"`
	Children []Diagnostic     `json:"children"`
	Rendered *string          `json:"rendered"`
}

// DiagnosticSpan locates a diagnostic in a source file.
type DiagnosticSpan struct {
	FileName             string         `json:"file_name"`
	LineStart            int            `json:"line_start"`
	LineEnd              int            `json:"line_end"`
	ColumnStart          int            `json:"column_start"`
	ColumnEnd            int            `json:"column_end"`
	IsPrimary            bool           `json:"is_primary"`
	Label                *string        `json:"label"`
	SuggestedReplacement *string        `json:"suggested_replacement"`
	Expansion            *SpanExpansion `json:"expansion"`
}

// SpanExpansion is one frame of a macro backtrace.
type SpanExpansion struct {
	Span          DiagnosticSpan `json:"span"`
	MacroDeclName string         `json:"macro_decl_name"`
}

// DiagnosticCode is an error code such as E0308.
type DiagnosticCode struct {
	Code        string  `json:"code"`
	Explanation *string `json:"explanation"`
}

// DecodeError is returned when a line that looks like JSON is not a diagnostic.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode compiler output as json: `%v`\nline: %s", e.Err, e.Line)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// JSONParser reads rustc JSON diagnostics.
type JSONParser struct{}

// NewJSONParser creates a new JSONParser
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse flattens every diagnostic in output into per-line entries for
// fileName. Lines that do not start with '{' are skipped.
func (p *JSONParser) Parse(fileName, output string) ([]expect.Error, error) {
	var out []expect.Error
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var d Diagnostic
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			return nil, &DecodeError{Line: line, Err: err}
		}
		out = pushDiagnostic(out, &d, nil, fileName)
	}
	return out, nil
}

// ExtractRendered replaces the JSON stream with the human-readable text
// the compiler would have printed.
func ExtractRendered(output string) (string, error) {
	var b strings.Builder
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var d Diagnostic
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			return "", &DecodeError{Line: line, Err: err}
		}
		if d.Rendered != nil {
			b.WriteString(*d.Rendered)
		}
	}
	return b.String(), nil
}

func pushDiagnostic(out []expect.Error, d *Diagnostic, defaultSpans []DiagnosticSpan, fileName string) []expect.Error {
	var inFile []DiagnosticSpan
	for _, s := range d.Spans {
		if samePath(s.FileName, fileName) {
			inFile = append(inFile, s)
		}
	}
	primary := defaultSpans
	for _, s := range inFile {
		if s.IsPrimary {
			primary = []DiagnosticSpan{s}
			break
		}
	}

	withCode := func(s DiagnosticSpan, text string) string {
		msg := fmt.Sprintf("%d:%d: %d:%d: %s", s.LineStart, s.ColumnStart, s.LineEnd, s.ColumnEnd, text)
		if d.Code != nil {
			msg += " [" + d.Code.Code + "]"
		}
		return msg
	}

	kind, _ := expect.ParseKind(d.Level)
	for i, text := range lines(d.Message) {
		lineKind := kind
		if i > 0 {
			lineKind = expect.KindNone
		}
		for _, s := range primary {
			out = append(out, expect.Error{Line: s.LineStart, Kind: lineKind, Msg: withCode(s, text)})
		}
	}

	for _, s := range primary {
		if s.SuggestedReplacement == nil {
			continue
		}
		for i, text := range lines(*s.SuggestedReplacement) {
			out = append(out, expect.Error{Line: s.LineStart + i, Kind: expect.KindSuggestion, Msg: text})
		}
	}

	for _, s := range primary {
		for exp := s.Expansion; exp != nil; exp = exp.Span.Expansion {
			if samePath(exp.Span.FileName, fileName) {
				out = append(out, expect.Error{
					Line: exp.Span.LineStart,
					Kind: expect.KindNote,
					Msg:  "in this expansion of " + exp.MacroDeclName,
				})
			}
		}
	}

	for _, s := range inFile {
		if s.Label != nil {
			out = append(out, expect.Error{Line: s.LineStart, Kind: expect.KindNote, Msg: *s.Label})
		}
	}

	for i := range d.Children {
		out = pushDiagnostic(out, &d.Children[i], primary, fileName)
	}
	return out
}

// lines splits s into lines without producing a trailing empty one.
func lines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
