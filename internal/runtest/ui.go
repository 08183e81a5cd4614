package runtest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"compiletest/internal/header"
	"compiletest/internal/matcher"
	"compiletest/internal/parser"
)

// uiRecipe compares the normalized compiler output with golden files.
type uiRecipe struct{}

func (uiRecipe) Execute(ctx context.Context, cx *TestCx) error {
	explicit := cx.hasCompileFlag("--error-format")
	res, err := cx.compileTest(ctx)
	if err != nil {
		return err
	}
	if err := cx.checkNoCompilerCrash(res); err != nil {
		return err
	}

	stderr := res.Stderr
	if !explicit {
		if stderr, err = parser.ExtractRendered(res.Stderr); err != nil {
			return cx.fatalProc(ClassConfig, fmt.Sprintf("failed to decode compiler output as json: %v", err), res)
		}
	}
	actual := map[string]string{
		"stdout": cx.normalizeOutput(res.Stdout, cx.props.NormalizeStdout),
		"stderr": cx.normalizeOutput(stderr, cx.props.NormalizeStderr),
	}

	var details []string
	for _, kind := range UIExtensions {
		d, err := cx.compareOutput(kind, actual[kind])
		if err != nil {
			return err
		}
		details = append(details, d...)
	}
	if len(details) > 0 {
		rel := filepath.Join(cx.paths.RelativeDir, filepath.Base(cx.paths.File))
		details = append(details,
			"To update references, rerun with --bless or run this command from build directory:",
			fmt.Sprintf("%s/update-references.sh '%s' '%s'", cx.cfg.SrcBase, cx.cfg.BuildBase, rel))
		return cx.mismatch("output differs from the reference files", res, details)
	}

	expected, err := cx.loadExpectedErrors()
	if err != nil {
		return err
	}
	if cx.props.RunPass {
		run, err := cx.execCompiledTest(ctx)
		if err != nil {
			return err
		}
		if !run.Success() {
			return cx.fatalProc(ClassProcess, "test run failed!", run)
		}
	}
	if explicit {
		return nil
	}
	if len(expected) > 0 || !res.Success() {
		return cx.checkExpectedErrors(expected, res)
	}
	if len(cx.props.ErrorPatterns) > 0 {
		return cx.checkErrorPatterns(res.Stderr, res)
	}
	return nil
}

// normalizeOutput makes compiler output independent of where the suite
// lives and which platform produced it.
func (cx *TestCx) normalizeOutput(output string, rules []header.NormalizeRule) string {
	parent := filepath.Dir(cx.paths.File)
	flags := strings.Join(cx.props.CompileFlags, " ")
	json := strings.Contains(flags, "--error-format json") ||
		strings.Contains(flags, "--error-format pretty-json") ||
		strings.Contains(flags, "--error-format=json") ||
		strings.Contains(flags, "--error-format=pretty-json")
	if json {
		parent = strings.ReplaceAll(parent, `\`, `\\`)
	}

	s := strings.ReplaceAll(output, parent, "$DIR")
	if json {
		s = strings.ReplaceAll(s, `\n`, "\n")
	}
	s = strings.ReplaceAll(s, `\\`, `\`)
	s = strings.NewReplacer(
		`\`, "/",
		"\r\n", "\n",
		"\t", `\t`,
	).Replace(s)
	return header.Apply(rules, s)
}

// expectedOutput loads a golden file, preferring the compare-mode variant.
// A missing file means the output is expected to be empty.
func (cx *TestCx) expectedOutput(kind string) (string, string, error) {
	path := ExpectedOutputPath(cx.paths, cx.revision, cx.cfg.CompareMode, kind)
	if _, err := os.Stat(path); err != nil && cx.cfg.CompareMode != "" {
		path = ExpectedOutputPath(cx.paths, cx.revision, "", kind)
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return path, "", nil
	}
	if err != nil {
		return path, "", cx.ioError(err)
	}
	return path, string(b), nil
}

// compareOutput checks one output kind. The actual output is saved next
// to the other outputs; with --bless it replaces the golden file instead.
func (cx *TestCx) compareOutput(kind, actual string) ([]string, error) {
	path, expected, err := cx.expectedOutput(kind)
	if err != nil {
		return nil, err
	}
	if actual == expected {
		return nil, nil
	}

	if cx.cfg.Bless {
		golden := ExpectedOutputPath(cx.paths, cx.revision, cx.cfg.CompareMode, kind)
		if actual == "" {
			if err := os.Remove(golden); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, cx.ioError(err)
			}
		} else if err := os.WriteFile(golden, []byte(actual), 0o644); err != nil {
			return nil, cx.ioError(err)
		}
		cx.logger.Info("blessed output", "kind", kind, "path", golden)
		return nil, nil
	}

	saved := cx.outName(kind)
	if err := os.WriteFile(saved, []byte(actual), 0o644); err != nil {
		return nil, cx.fatalf(ClassIO, "failed to write %s to `%s`: %v", kind, saved, err)
	}
	return []string{
		fmt.Sprintf("diff of %s:", kind),
		matcher.UnifiedDiff(expected, actual, path, saved),
		fmt.Sprintf("The actual %s differed from the expected %s.", kind, kind),
		fmt.Sprintf("Actual %s saved to %s", kind, saved),
	}, nil
}
