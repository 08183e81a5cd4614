package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"compiletest/internal/domain"
)

// Formatter formats and displays output
type Formatter struct {
	out io.Writer
}

// NewFormatter creates a new Formatter writing to out
func NewFormatter(out io.Writer) *Formatter {
	return &Formatter{out: out}
}

// PrintMetaStats displays the statistics of a run and a tree of its failures
func (f *Formatter) PrintMetaStats(output *domain.TestResultsOutput) {
	meta := output.Meta

	fmt.Fprintln(f.out)
	fmt.Fprintln(f.out, color.CyanString("╔═══════════════════════════════════════════════════════════════╗"))
	fmt.Fprintln(f.out, color.CyanString("║                    Test Execution Statistics                  ║"))
	fmt.Fprintln(f.out, color.CyanString("╚═══════════════════════════════════════════════════════════════╝"))
	fmt.Fprintln(f.out)

	rows := []struct {
		label string
		value string
		paint func(string, ...interface{}) string
	}{
		{"Mode", meta.Mode, color.WhiteString},
		{"Suite", meta.Suite, color.WhiteString},
		{"Total Tests", humanize.Comma(int64(meta.TotalTests)), color.WhiteString},
		{"Passed", humanize.Comma(int64(meta.PassedTests)), color.GreenString},
		{"Failed", humanize.Comma(int64(meta.FailedTests)), color.RedString},
		{"Ignored", humanize.Comma(int64(meta.IgnoredTests)), color.YellowString},
		{"Duration", FormatDuration(time.Duration(meta.DurationSeconds * float64(time.Second))), color.WhiteString},
		{"Workers", fmt.Sprint(meta.Workers), color.WhiteString},
		{"Started", FormatTimestamp(meta.Timestamp), color.WhiteString},
	}

	fmt.Fprintln(f.out, "┌─────────────────────────────────┬─────────────────────────────┐")
	for i, r := range rows {
		fmt.Fprintf(f.out, "│ %-31s │ %s │\n", r.label, r.paint("%-27s", r.value))
		if i < len(rows)-1 {
			fmt.Fprintln(f.out, "├─────────────────────────────────┼─────────────────────────────┤")
		}
	}
	fmt.Fprintln(f.out, "└─────────────────────────────────┴─────────────────────────────┘")

	fmt.Fprintln(f.out)
	if meta.FailedTests == 0 {
		fmt.Fprintln(f.out, color.GreenString("✓ All tests passed!"))
		return
	}
	fmt.Fprintln(f.out, color.RedString("✗ %s test(s) failed", humanize.Comma(int64(meta.FailedTests))))
	fmt.Fprintln(f.out)
	f.printFailedTestsTree(output.Details)
}

// FormatDuration renders a run duration: "850ms", "12.3s" or "4m05s".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		d = d.Round(time.Second)
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

// FormatTimestamp shows an RFC 3339 timestamp relative to now, e.g. "3 minutes ago".
func FormatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

// PrintFailure writes the full report of one failure: mismatches, the
// message and the captured process output.
func (f *Formatter) PrintFailure(failure domain.TestFailure) {
	fmt.Fprintf(f.out, "\n---- %s ----\n", color.RedString(failure.TestName))
	for _, m := range failure.Mismatches {
		fmt.Fprintln(f.out, m)
	}
	if failure.Revision != "" {
		fmt.Fprintf(f.out, "\nerror in revision `%s`: %s\n", failure.Revision, failure.Message)
	} else {
		fmt.Fprintf(f.out, "\nerror: %s\n", failure.Message)
	}
	if failure.Command == "" {
		return
	}
	const rule = "------------------------------------------"
	status := "signal"
	if failure.Status != nil && *failure.Status >= 0 {
		status = fmt.Sprintf("exit code: %d", *failure.Status)
	}
	fmt.Fprintf(f.out, "status: %s\ncommand: %s\nstdout:\n%s\n%s\n%s\nstderr:\n%s\n%s\n%s\n",
		status, failure.Command, rule, failure.Stdout, rule, rule, failure.Stderr, rule)
}

// TreeNode represents a node in the suite directory tree
type TreeNode struct {
	Name     string
	Children map[string]*TreeNode
	Failures []domain.TestFailure
	IsFile   bool
}

// printFailedTestsTree groups failures by the path part of their test
// names, so revisions of one file end up under the same node.
func (f *Formatter) printFailedTestsTree(failures []domain.TestFailure) {
	root := &TreeNode{Children: make(map[string]*TreeNode)}
	for _, failure := range failures {
		path := failure.TestName
		if _, rest, ok := strings.Cut(path, "] "); ok {
			path = rest
		}
		path, _, _ = strings.Cut(path, "#")

		current := root
		parts := strings.Split(path, "/")
		for i, part := range parts {
			if part == "" {
				continue
			}
			if current.Children[part] == nil {
				current.Children[part] = &TreeNode{
					Name:     part,
					Children: make(map[string]*TreeNode),
					IsFile:   i == len(parts)-1,
				}
			}
			current = current.Children[part]
		}
		current.Failures = append(current.Failures, failure)
	}
	f.printTreeNode(root, "")
}

func (f *Formatter) printTreeNode(node *TreeNode, prefix string) {
	keys := make([]string, 0, len(node.Children))
	for key := range node.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		child := node.Children[key]
		last := i == len(keys)-1
		connector, childPrefix := "├── ", "│   "
		if last {
			connector, childPrefix = "└── ", "    "
		}

		if child.IsFile {
			fmt.Fprintln(f.out, prefix+connector+color.YellowString(child.Name))
			for j, failure := range child.Failures {
				caseConnector := "├── "
				if j == len(child.Failures)-1 {
					caseConnector = "└── "
				}
				label := failure.Message
				if failure.Revision != "" {
					label = "#" + failure.Revision + ": " + label
				}
				fmt.Fprintln(f.out, prefix+childPrefix+caseConnector+color.RedString(label))
			}
		} else {
			fmt.Fprintln(f.out, prefix+connector+color.CyanString(child.Name))
		}
		f.printTreeNode(child, prefix+childPrefix)
	}
}

// PrintTestList prints the planned tests. Tests in failed (by name, from
// the last run) are marked with [F]; ignored tests show their reason.
func (f *Formatter) PrintTestList(tests []domain.Test, failed map[string]bool) {
	fmt.Fprintln(f.out, color.GreenString("Found %s test(s):", humanize.Comma(int64(len(tests)))))
	fmt.Fprintln(f.out)
	for i, test := range tests {
		connector := "├── "
		if i == len(tests)-1 {
			connector = "└── "
		}
		line := connector + color.CyanString(test.Name)
		if failed[test.Name] {
			line += " " + color.RedString("[F]")
		}
		if test.Ignore {
			line += " " + color.YellowString("(ignored: %s)", test.IgnoreReason)
		}
		fmt.Fprintln(f.out, line)
	}
}
