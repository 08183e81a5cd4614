package runtest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"compiletest/internal/process"
)

// rustdocRecipe documents the test and checks the generated HTML with
// htmldocck, or the doctest line numbers with check-test-line-numbers-match.
type rustdocRecipe struct{}

func (rustdocRecipe) Execute(ctx context.Context, cx *TestCx) error {
	if err := cx.noRevisions(); err != nil {
		return err
	}
	if cx.cfg.RustdocPath == "" {
		return cx.fatal(ClassConfig, "missing --rustdoc-path")
	}
	outDir := cx.base
	if err := os.RemoveAll(outDir); err != nil {
		return cx.ioError(err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return cx.ioError(err)
	}

	res, err := cx.document(ctx, outDir, true)
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "rustdoc failed!", res)
	}

	if cx.props.CheckTestLineNumbersMatch {
		return cx.checkDoctestLines(res)
	}
	ppDir, err := cx.prettyPrinterDir()
	if err != nil {
		return err
	}
	check := process.Command{
		Path: cx.cfg.DocckPython,
		Args: []string{filepath.Join(ppDir, "htmldocck.py"), outDir, cx.paths.File},
	}
	res, err = cx.composeAndRun(ctx, check, "", "")
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "htmldocck failed!", res)
	}
	return nil
}

// document runs rustdoc on the test, after its auxiliaries when
// build-aux-docs is set.
func (cx *TestCx) document(ctx context.Context, outDir string, top bool) (*process.Result, error) {
	if cx.props.BuildAuxDocs {
		for _, rel := range cx.props.AuxBuilds {
			auxCx, err := cx.auxContext(rel)
			if err != nil {
				return nil, err
			}
			res, err := auxCx.document(ctx, outDir, false)
			if err != nil {
				return nil, err
			}
			if !res.Success() {
				return res, nil
			}
		}
	}

	args := []string{"-L", cx.auxOutputDir(), "-o", outDir, cx.paths.File}
	args = append(args, cx.props.CompileFlags...)
	cmd := process.Command{Path: cx.cfg.RustdocPath, Args: args}
	if top {
		return cx.composeAndRunCompiler(ctx, cmd)
	}
	cmd.Env = envPairs(cx.props.RustcEnv)
	return cx.composeAndRun(ctx, cmd, cx.cfg.CompileLibPath, cx.auxOutputDir())
}

// checkDoctestLines matches the "test <file> - <item> (line N)" lines of
// rustdoc --test against the code blocks of the test and the modules it
// declares.
func (cx *TestCx) checkDoctestLines(res *process.Result) error {
	var others []string
	lines, err := codeBlockLines(cx.paths.File, &others)
	if err != nil {
		return cx.ioError(err)
	}
	files := map[string][]int{displayPath(cx.paths.File): lines}
	for _, mod := range others {
		path := filepath.Join(filepath.Dir(cx.paths.File), mod+".rs")
		lines, err := codeBlockLines(path, nil)
		if err != nil {
			return cx.ioError(err)
		}
		files[displayPath(path)] = lines
	}

	tested := 0
	for _, s := range strings.Split(res.Stdout, "\n") {
		if !strings.HasPrefix(s, "test ") {
			continue
		}
		parts := strings.Split(s, " - ")
		if len(parts) != 2 {
			continue
		}
		path := filepath.ToSlash(strings.TrimPrefix(parts[0], "test "))
		want, ok := files[path]
		if !ok {
			continue
		}
		tested++
		line := doctestLine(parts[1])
		idx := sort.SearchInts(want, line)
		if idx >= len(want) || want[idx] != line {
			return cx.fatalProc(ClassMismatch, fmt.Sprintf("Not found doc test: %q in %q:%v", s, path, want), res)
		}
		files[path] = append(want[:idx], want[idx+1:]...)
	}

	if tested == 0 {
		return cx.fatalProc(ClassMismatch, fmt.Sprintf("No test has been found... %v", files), res)
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if v := files[p]; len(v) > 0 {
			plural := ""
			if len(v) > 1 {
				plural = "s"
			}
			return cx.fatalProc(ClassMismatch, fmt.Sprintf("Not found test at line%s %q:%v", plural, p, v), res)
		}
	}
	return nil
}

func doctestLine(s string) int {
	_, after, ok := strings.Cut(s, "(line ")
	if !ok {
		return 0
	}
	num, _, _ := strings.Cut(after, ")")
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0
	}
	return n
}

// displayPath is how rustdoc names a file: relative to the working
// directory when possible, with forward slashes.
func displayPath(path string) string {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}

// codeBlockLines returns the 1-based lines opening a ``` block in doc
// comments. Out-of-line module declarations are appended to others.
func codeBlockLines(path string, others *[]string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []int
	inBlock := false
	scanner := bufio.NewScanner(f)
	for num := 1; scanner.Scan(); num++ {
		line := scanner.Text()
		trimmed := strings.TrimLeft(line, " \t")
		if (strings.HasPrefix(trimmed, "pub mod ") || strings.HasPrefix(trimmed, "mod ")) && strings.HasSuffix(line, ";") {
			if others != nil {
				idx := strings.LastIndex(line, "mod ")
				*others = append(*others, strings.ReplaceAll(line[idx+len("mod "):], ";", ""))
			}
			continue
		}
		doc := line
		if idx := strings.LastIndex(line, "///"); idx >= 0 {
			doc = line[idx+len("///"):]
		}
		if strings.HasPrefix(strings.TrimLeft(doc, " \t"), "```") {
			if !inBlock {
				out = append(out, num)
			}
			inBlock = !inBlock
		}
	}
	return out, scanner.Err()
}
