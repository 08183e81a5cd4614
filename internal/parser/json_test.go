package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"compiletest/internal/expect"
)

const mismatchedTypes = `{"message":"mismatched types","code":{"code":"E0308","explanation":null},"level":"error","spans":[{"file_name":"foo.rs","line_start":3,"line_end":3,"column_start":18,"column_end":25,"is_primary":true,"label":"expected u32, found &str","suggested_replacement":null,"expansion":null}],"children":[{"message":"try using a conversion method","code":null,"level":"help","spans":[{"file_name":"foo.rs","line_start":3,"line_end":3,"column_start":18,"column_end":25,"is_primary":true,"label":null,"suggested_replacement":"\"x\".parse()","expansion":null}],"children":[],"rendered":null},{"message":"expected type ` + "`u32`" + `\n   found type ` + "`&str`" + `","code":null,"level":"note","spans":[],"children":[],"rendered":null}],"rendered":"error[E0308]: mismatched types\n"}`

const otherFile = `{"message":"unused import","code":null,"level":"warning","spans":[{"file_name":"aux.rs","line_start":1,"line_end":1,"column_start":1,"column_end":5,"is_primary":true,"label":null,"suggested_replacement":null,"expansion":null}],"children":[],"rendered":"warning: unused import\n"}`

const macroBacktrace = `{"message":"oops","code":null,"level":"error","spans":[{"file_name":"lib.rs","line_start":40,"line_end":40,"column_start":1,"column_end":2,"is_primary":true,"label":null,"suggested_replacement":null,"expansion":{"span":{"file_name":"foo.rs","line_start":7,"line_end":7,"column_start":5,"column_end":20,"is_primary":false,"label":null,"suggested_replacement":null,"expansion":null},"macro_decl_name":"my_macro!"}}],"children":[],"rendered":null}`

func TestJSONParser_Parse(t *testing.T) {
	output := strings.Join([]string{mismatchedTypes, "not json at all", otherFile, ""}, "\n")

	got, err := NewJSONParser().Parse("foo.rs", output)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []expect.Error{
		{Line: 3, Kind: expect.KindError, Msg: "3:18: 3:25: mismatched types [E0308]"},
		{Line: 3, Kind: expect.KindNote, Msg: "expected u32, found &str"},
		{Line: 3, Kind: expect.KindHelp, Msg: "3:18: 3:25: try using a conversion method"},
		{Line: 3, Kind: expect.KindSuggestion, Msg: `"x".parse()`},
		// a child without spans inherits the parent's primary span
		{Line: 3, Kind: expect.KindNote, Msg: "3:18: 3:25: expected type `u32`"},
		{Line: 3, Kind: expect.KindNone, Msg: "3:18: 3:25:    found type `&str`"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONParser_MacroBacktrace(t *testing.T) {
	got, err := NewJSONParser().Parse("foo.rs", macroBacktrace)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// The primary span is in another file, so nothing is attributed to foo.rs.
	if len(got) != 0 {
		t.Errorf("expected no entries for a span outside the file, got %+v", got)
	}

	got, err = NewJSONParser().Parse("lib.rs", macroBacktrace)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 1 || got[0].Line != 40 {
		t.Errorf("expected the primary error on line 40, got %+v", got)
	}
}

func TestJSONParser_DecodeError(t *testing.T) {
	_, err := NewJSONParser().Parse("foo.rs", "{not json")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decodeErr.Line != "{not json" {
		t.Errorf("expected offending line, got %q", decodeErr.Line)
	}
}

func TestExtractRendered(t *testing.T) {
	got, err := ExtractRendered(strings.Join([]string{mismatchedTypes, "plain", otherFile}, "\n"))
	if err != nil {
		t.Fatalf("ExtractRendered: %v", err)
	}
	want := "error[E0308]: mismatched types\nwarning: unused import\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
