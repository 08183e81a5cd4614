package runtest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"compiletest/internal/process"
)

type codegenRecipe struct{}

func (codegenRecipe) Execute(ctx context.Context, cx *TestCx) error {
	if err := cx.noRevisions(); err != nil {
		return err
	}
	if cx.cfg.FileCheckPath == "" {
		return cx.fatal(ClassConfig, "missing --llvm-filecheck")
	}

	irFile := cx.outName("ll")
	args, err := cx.compileArgs(cx.paths.File, outputTarget{file: irFile})
	if err != nil {
		return err
	}
	args = append(args, "-L", cx.auxOutputDir(), "--emit=llvm-ir")
	res, err := cx.composeAndRunCompiler(ctx, process.Command{Path: cx.cfg.RustcPath, Args: args})
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "compilation failed!", res)
	}

	check := process.Command{Path: cx.cfg.FileCheckPath, Args: []string{"--input-file", irFile, cx.paths.File}}
	res, err = cx.composeAndRun(ctx, check, "", "")
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "verification with 'FileCheck' failed", res)
	}
	return nil
}

const (
	transItemPrefix = "TRANS_ITEM "
	cguMarker       = "@@"
)

// transItem is one item the compiler reported with the codegen units it
// was placed in.
type transItem struct {
	name string
	cgus map[string]bool
	text string
}

// parseTransItem reads "[TRANS_ITEM ]name [@@ cgu...]".
func parseTransItem(s string) transItem {
	s = strings.TrimSpace(strings.TrimPrefix(s, transItemPrefix))
	item := transItem{text: transItemPrefix + s, cgus: map[string]bool{}}
	name, cgus, _ := strings.Cut(s, cguMarker)
	item.name = strings.TrimSpace(name)
	for _, cgu := range strings.Fields(cgus) {
		item.cgus[cgu] = true
	}
	return item
}

func (t transItem) cguList() string {
	list := make([]string, 0, len(t.cgus))
	for c := range t.cgus {
		list = append(list, c)
	}
	sort.Strings(list)
	return strings.Join(list, " ")
}

func sameCGUs(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for c := range a {
		if !b[c] {
			return false
		}
	}
	return true
}

// codegenUnitsRecipe compares the items the compiler reports against the
// TRANS_ITEM annotations of the test, including their codegen units when
// the annotation names any.
type codegenUnitsRecipe struct{}

func (codegenUnitsRecipe) Execute(ctx context.Context, cx *TestCx) error {
	if err := cx.noRevisions(); err != nil {
		return err
	}
	res, err := cx.compileTest(ctx)
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "compilation failed!", res)
	}
	if err := cx.checkNoCompilerCrash(res); err != nil {
		return err
	}

	var actual []transItem
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.HasPrefix(line, transItemPrefix) {
			actual = append(actual, parseTransItem(line))
		}
	}
	annotations, err := cx.loadExpectedErrors()
	if err != nil {
		return err
	}
	expected := make([]transItem, len(annotations))
	for i, a := range annotations {
		expected[i] = parseTransItem(a.Msg)
	}

	details := compareTransItems(expected, actual)
	if len(details) > 0 {
		return cx.mismatch("codegen units do not match expectations", res, details)
	}
	return nil
}

func compareTransItems(expected, actual []transItem) []string {
	find := func(items []transItem, name string) (transItem, bool) {
		for _, it := range items {
			if it.name == name {
				return it, true
			}
		}
		return transItem{}, false
	}

	var missing, unexpected []string
	type pair struct{ expected, actual transItem }
	var wrong []pair
	for _, e := range expected {
		a, ok := find(actual, e.name)
		if !ok {
			missing = append(missing, e.text)
			continue
		}
		if len(e.cgus) > 0 && !sameCGUs(e.cgus, a.cgus) {
			wrong = append(wrong, pair{e, a})
		}
	}
	for _, a := range actual {
		if _, ok := find(expected, a.name); !ok {
			unexpected = append(unexpected, a.text)
		}
	}

	var details []string
	if len(missing) > 0 {
		sort.Strings(missing)
		details = append(details, "These items should have been contained but were not:")
		details = append(details, missing...)
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		details = append(details, "These items were contained but should not have been:")
		details = append(details, unexpected...)
	}
	if len(wrong) > 0 {
		sort.Slice(wrong, func(i, j int) bool { return wrong[i].expected.name < wrong[j].expected.name })
		details = append(details, "The following items were assigned to wrong codegen units:")
		for _, w := range wrong {
			details = append(details,
				w.expected.name,
				fmt.Sprintf("  expected: %s", w.expected.cguList()),
				fmt.Sprintf("  actual:   %s", w.actual.cguList()))
		}
	}
	return details
}
