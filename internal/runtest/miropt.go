package runtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const mirSourceEnd = "// END RUST SOURCE"

// mirLine is one expectation of a MIR dump block; elision matches any run
// of dump lines.
type mirLine struct {
	text    string
	elision bool
}

// mirBlock is a "// START name" ... "// END name" block naming a dump file.
type mirBlock struct {
	name  string
	lines []mirLine
}

// mirOptRecipe compiles and runs the test with MIR dumps enabled, then
// checks the dumps against the blocks after the source.
type mirOptRecipe struct{}

func (mirOptRecipe) Execute(ctx context.Context, cx *TestCx) error {
	res, err := cx.compileTest(ctx)
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "compilation failed!", res)
	}
	res, err = cx.execCompiledTest(ctx)
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "test run failed!", res)
	}

	src, err := os.ReadFile(cx.paths.File)
	if err != nil {
		return cx.ioError(err)
	}
	blocks, err := parseMirBlocks(string(src))
	if err != nil {
		return cx.fatal(ClassConfig, err.Error())
	}
	for _, b := range blocks {
		if err := cx.checkMirDump(b); err != nil {
			return err
		}
	}
	return nil
}

func parseMirBlocks(src string) ([]mirBlock, error) {
	idx := strings.Index(src, mirSourceEnd)
	if idx < 0 {
		return nil, nil
	}
	var blocks []mirBlock
	var cur *mirBlock
	for _, l := range strings.Split(src[idx+len(mirSourceEnd):], "\n") {
		l = strings.TrimRight(l, "\r")
		switch {
		case strings.HasPrefix(l, "// START "):
			cur = &mirBlock{name: strings.TrimPrefix(l, "// START "), lines: []mirLine{{elision: true}}}
		case strings.HasPrefix(l, "// END"):
			name := strings.TrimPrefix(strings.TrimPrefix(l, "// END"), " ")
			if cur == nil || cur.name != name {
				return nil, fmt.Errorf("mismatched START END test name %q", name)
			}
			blocks = append(blocks, *cur)
			cur = nil
		case l == "" || cur == nil:
		case strings.HasPrefix(l, "//") && strings.TrimSpace(l[2:]) == "...":
			cur.lines = append(cur.lines, mirLine{elision: true})
		case strings.HasPrefix(l, "// "):
			if text := l[3:]; text != "" {
				cur.lines = append(cur.lines, mirLine{text: text})
			}
		}
	}
	return blocks, nil
}

func (cx *TestCx) checkMirDump(b mirBlock) error {
	dump := filepath.Join(cx.mirDumpDir(), b.name)
	info, err := os.Stat(dump)
	if err != nil {
		return cx.fatalf(ClassMismatch, "Output file `%s` from test does not exist", dump)
	}
	if src, err := os.Stat(cx.paths.File); err == nil && src.ModTime().After(info.ModTime()) {
		return cx.fatalf(ClassMismatch, "test source file `%s` is newer than potentially stale output file `%s`", cx.paths.File, b.name)
	}
	contents, err := os.ReadFile(dump)
	if err != nil {
		return cx.ioError(err)
	}
	var dumped []string
	for _, l := range strings.Split(string(contents), "\n") {
		if l = strings.TrimRight(l, "\r"); l != "" {
			dumped = append(dumped, l)
		}
	}

	if expected, reason := matchMirLines(b.lines, dumped); reason != "" {
		var want, got []string
		for _, l := range b.lines {
			if l.elision {
				want = append(want, "... (elided)")
			} else {
				want = append(want, l.text)
			}
		}
		for _, l := range dumped {
			if l = mirNoComment(l); l != "" {
				got = append(got, l)
			}
		}
		return cx.mismatch(fmt.Sprintf("Did not find expected line, error: %s", reason), nil, []string{
			fmt.Sprintf("Expected Line: %q", expected),
			"Expected:\n" + strings.Join(want, "\n"),
			"Actual:\n" + strings.Join(got, "\n"),
		})
	}
	return nil
}

// matchMirLines walks the dump against the expectations. Consecutive
// expected lines must be consecutive in the dump unless separated by an
// elision. It returns the failing expected line and a reason, or "".
func matchMirLines(expected []mirLine, dumped []string) (string, string) {
	e, d := 0, 0
	for e < len(expected) {
		if expected[e].elision {
			for e < len(expected) && expected[e].elision {
				e++
			}
			if e == len(expected) {
				return "", ""
			}
			want := expected[e].text
			for d < len(dumped) && !mirEqual(want, dumped[d]) {
				d++
			}
			if d == len(dumped) {
				return want, "ran out of mir dump to match against"
			}
			e++
			d++
			continue
		}
		want := expected[e].text
		if d == len(dumped) {
			return want, "ran out of mir dump to match against"
		}
		if !mirEqual(want, dumped[d]) {
			return want, fmt.Sprintf("Mismatch in lines\nExpected Line: %q\nActual Line: %q", want, dumped[d])
		}
		e++
		d++
	}
	return "", ""
}

func mirEqual(expected, dumped string) bool {
	return mirNormalize(expected) == mirNormalize(dumped)
}

func mirNormalize(l string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, mirNoComment(l))
}

func mirNoComment(l string) string {
	if idx := strings.Index(l, "//"); idx >= 0 {
		return strings.TrimRightFunc(l[:idx], unicode.IsSpace)
	}
	return l
}
