package header

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

type tag int

const (
	tagErrorPattern tag = iota
	tagCompileFlags
	tagRunFlags
	tagPPExact
	tagAuxBuild
	tagExecEnv
	tagRustcEnv
	tagForbidOutput
	tagRevisions
	tagPrettyMode
	tagBuildAuxDocs
	tagForceHost
	tagCheckStdout
	tagNoPreferDynamic
	tagPrettyExpanded
	tagPrettyCompareOnly
	tagMustCompileSuccessfully
	tagCheckTestLineNumbersMatch
	tagRunPass
	tagShouldFail
	tagMinGDBVersion
	tagIgnoreGDBVersion
	tagMinLLDBVersion
	tagMinLLVMVersion
)

type arity int

const (
	// flag directives are recognized by name alone
	flag arity = iota
	// value directives need "name: payload"
	value
	// optional directives may carry a payload
	optional
	// version directives take "name X" or "name: X"
	versionGate
)

type directive struct {
	tag   tag
	arity arity
}

var directiveTable = map[string]directive{
	"error-pattern":                 {tagErrorPattern, value},
	"compile-flags":                 {tagCompileFlags, value},
	"run-flags":                     {tagRunFlags, value},
	"pp-exact":                      {tagPPExact, optional},
	"aux-build":                     {tagAuxBuild, value},
	"exec-env":                      {tagExecEnv, value},
	"rustc-env":                     {tagRustcEnv, value},
	"forbid-output":                 {tagForbidOutput, value},
	"revisions":                     {tagRevisions, value},
	"pretty-mode":                   {tagPrettyMode, value},
	"build-aux-docs":                {tagBuildAuxDocs, flag},
	"force-host":                    {tagForceHost, flag},
	"check-stdout":                  {tagCheckStdout, flag},
	"no-prefer-dynamic":             {tagNoPreferDynamic, flag},
	"pretty-expanded":               {tagPrettyExpanded, flag},
	"pretty-compare-only":           {tagPrettyCompareOnly, flag},
	"must-compile-successfully":     {tagMustCompileSuccessfully, flag},
	"check-test-line-numbers-match": {tagCheckTestLineNumbersMatch, flag},
	"run-pass":                      {tagRunPass, flag},
	"should-fail":                   {tagShouldFail, flag},
	"min-gdb-version":               {tagMinGDBVersion, versionGate},
	"ignore-gdb-version":            {tagIgnoreGDBVersion, versionGate},
	"min-lldb-version":              {tagMinLLDBVersion, versionGate},
	"min-llvm-version":              {tagMinLLVMVersion, versionGate},
}

// Families of directives whose names embed a configuration name.
const (
	ignorePrefix          = "ignore-"
	normalizeStdoutPrefix = "normalize-stdout"
	normalizeStderrPrefix = "normalize-stderr"
)

// headerLine is one directive-bearing comment from the head of a test file.
type headerLine struct {
	num     int
	name    string
	payload string
	// hasPayload is true when the name was followed by ':' or, for
	// version gates, by a non-empty remainder.
	hasPayload bool
}

// splitDirective splits the comment text after the comment marker into a
// directive name and its payload. The name ends at whitespace or ':', so a
// directive only ever matches as a whole word.
func splitDirective(text string) (name, rest string, colon bool) {
	text = strings.TrimLeft(text, " \t")
	end := strings.IndexFunc(text, func(r rune) bool {
		return r == ':' || r == ' ' || r == '\t'
	})
	if end < 0 {
		return text, "", false
	}
	name = text[:end]
	rest = text[end:]
	trimmed := strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(trimmed, ":") {
		return name, strings.TrimSpace(trimmed[1:]), true
	}
	return name, strings.TrimSpace(rest), false
}

// commentPrefix returns the comment marker used by a test file.
func commentPrefix(path string) string {
	if strings.HasSuffix(path, "Makefile") {
		return "#"
	}
	return "//"
}

// iterHeader calls fn for every directive line in the header of r. The
// header ends at the first line that starts an item ("fn" or "mod").
// Lines scoped with "//[rev]" are only passed on when rev matches; an
// empty rev skips every scoped line.
func iterHeader(r io.Reader, prefix, rev string, fn func(headerLine) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	num := 0
	for scanner.Scan() {
		num++
		ln := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(ln, "fn") || strings.HasPrefix(ln, "mod") {
			break
		}
		if !strings.HasPrefix(ln, prefix) {
			continue
		}
		text := ln[len(prefix):]
		if strings.HasPrefix(text, "[") {
			closing := strings.Index(text, "]")
			if closing < 0 {
				return fmt.Errorf("line %d: malformed condition directive: expected `%s[foo]`, found `%s`", num, prefix, ln)
			}
			if rev == "" || text[1:closing] != rev {
				continue
			}
			text = text[closing+1:]
		}
		if strings.HasPrefix(text, "~") {
			// Expected-diagnostic annotation, not a directive.
			continue
		}

		name, rest, colon := splitDirective(text)
		if name == "" {
			continue
		}
		hl := headerLine{num: num, name: name, payload: rest, hasPayload: colon}
		if d, ok := directiveTable[name]; ok && d.arity == versionGate {
			hl.hasPayload = rest != ""
		}
		if err := fn(hl); err != nil {
			return fmt.Errorf("line %d: %w", num, err)
		}
	}
	return scanner.Err()
}
