package runtest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"compiletest/internal/expect"
	"compiletest/internal/matcher"
	"compiletest/internal/parser"
	"compiletest/internal/process"
)

func (cx *TestCx) checkCorrectFailureStatus(res *process.Result) error {
	if res.Status != rustErrorStatus {
		return cx.fatalProc(ClassProcess, fmt.Sprintf("failure produced the wrong error: %s", describeStatus(res.Status)), res)
	}
	return nil
}

func (cx *TestCx) checkNoCompilerCrash(res *process.Result) error {
	if strings.Contains(res.Stderr, iceMarker) {
		return cx.fatalProc(ClassICE, "compiler encountered internal error", res)
	}
	return nil
}

func (cx *TestCx) checkForbidOutput(output string, res *process.Result) error {
	if found := matcher.ForbiddenPatterns(cx.props.ForbidOutput, output); len(found) > 0 {
		details := make([]string, len(found))
		for i, p := range found {
			details[i] = fmt.Sprintf("forbidden pattern '%s' found", p)
		}
		return cx.mismatch("forbidden pattern found in compiler output", res, details)
	}
	return nil
}

// checkErrorPatterns runs the ordered error-pattern scan over output.
func (cx *TestCx) checkErrorPatterns(output string, res *process.Result) error {
	if len(cx.props.ErrorPatterns) == 0 {
		if cx.props.MustCompileSuccessfully {
			return nil
		}
		return cx.fatalf(ClassConfig, "no error pattern specified in %q", cx.paths.File)
	}
	missing := matcher.ErrorPatterns(cx.props.ErrorPatterns, output)
	switch len(missing) {
	case 0:
		return nil
	case 1:
		return cx.fatalProc(ClassMismatch, fmt.Sprintf("error pattern '%s' not found!", missing[0]), res)
	}
	details := make([]string, len(missing))
	for i, p := range missing {
		details[i] = fmt.Sprintf("error pattern '%s' not found!", p)
	}
	return cx.mismatch("multiple error patterns not found", res, details)
}

// checkExpectedErrors matches the compiler's JSON diagnostics against the
// annotations of the test file.
func (cx *TestCx) checkExpectedErrors(expected []expect.Error, res *process.Result) error {
	if res.Success() && expect.HasKind(expected, expect.KindError) {
		return cx.fatalProc(ClassProcess, "process did not return an error status", res)
	}

	fileName := filepath.ToSlash(cx.paths.File)
	actual, err := cx.parser.Parse(fileName, res.Stderr)
	if err != nil {
		var decodeErr *parser.DecodeError
		if errors.As(err, &decodeErr) {
			return cx.fatalProc(ClassConfig, fmt.Sprintf("failed to decode compiler output as json: `%v`\nline: %s", decodeErr.Err, decodeErr.Line), res)
		}
		return cx.fatalProc(ClassConfig, err.Error(), res)
	}

	result := matcher.Match(expected, actual)
	if result.OK() {
		return nil
	}
	var details []string
	for _, a := range result.Unexpected {
		details = append(details, fmt.Sprintf("%s:%d: unexpected %s: '%s'", fileName, a.Line, a.Kind, a.Msg))
	}
	for _, e := range result.Missing {
		details = append(details, fmt.Sprintf("%s:%d: expected %s not found: %s", fileName, e.Line, e.Kind, e.Msg))
	}
	msg := fmt.Sprintf("%d unexpected errors found, %d expected errors not found", len(result.Unexpected), len(result.Missing))
	return cx.mismatch(msg, res, details)
}

// loadExpectedErrors reads the annotations for the current revision.
func (cx *TestCx) loadExpectedErrors() ([]expect.Error, error) {
	errs, err := expect.Load(cx.paths.File, cx.revision)
	if err != nil {
		return nil, cx.fatal(ClassConfig, err.Error())
	}
	return errs, nil
}
