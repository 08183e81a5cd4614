package runtest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"compiletest/internal/config"
	"compiletest/internal/matcher"
	"compiletest/internal/process"
	"compiletest/internal/version"
)

// debuggerCommands are the debugger directives collected from a whole
// test file.
type debuggerCommands struct {
	commands        []string
	checkLines      []string
	breakpointLines []int
}

// parseDebuggerCommands reads <prefix>-command and <prefix>-check lines
// and the lines marked #break.
func parseDebuggerCommands(path string, prefixes []string) (debuggerCommands, error) {
	f, err := os.Open(path)
	if err != nil {
		return debuggerCommands{}, err
	}
	defer f.Close()

	var dc debuggerCommands
	scanner := bufio.NewScanner(f)
	for num := 1; scanner.Scan(); num++ {
		line := scanner.Text()
		if strings.Contains(line, "#break") {
			dc.breakpointLines = append(dc.breakpointLines, num)
		}
		for _, prefix := range prefixes {
			if v, ok := nameValue(line, prefix+"-command"); ok {
				dc.commands = append(dc.commands, v)
			}
			if v, ok := nameValue(line, prefix+"-check"); ok {
				dc.checkLines = append(dc.checkLines, v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return debuggerCommands{}, fmt.Errorf("error while parsing debugger commands: %w", err)
	}
	return dc, nil
}

func nameValue(line, directive string) (string, bool) {
	key := directive + ":"
	idx := strings.Index(line, key)
	if idx < 0 {
		return "", false
	}
	return line[idx+len(key):], true
}

// withoutDebugFlags drops -O, -g and --debuginfo from the configured
// compiler flags; debuginfo tests set their own.
func withoutDebugFlags(cfg *config.Config) *config.Config {
	strip := func(s string) string {
		var kept []string
		for _, f := range strings.Fields(s) {
			if f != "-O" && f != "-g" && f != "--debuginfo" {
				kept = append(kept, f)
			}
		}
		return strings.Join(kept, " ")
	}
	cp := cfg.Clone()
	cp.TargetRustcFlags = strip(cfg.TargetRustcFlags)
	cp.HostRustcFlags = strip(cfg.HostRustcFlags)
	return cp
}

// prettyPrinterDir is src/etc of the checkout.
func (cx *TestCx) prettyPrinterDir() (string, error) {
	root := cx.cfg.FindSrcRoot()
	if root == "" {
		return "", cx.fatal(ClassConfig, "could not find the source root (a parent of the suite containing src/etc)")
	}
	return filepath.Join(root, "src", "etc"), nil
}

func (cx *TestCx) compileForDebugger(ctx context.Context) error {
	res, err := cx.compileTest(ctx)
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "compilation failed!", res)
	}
	return nil
}

func (cx *TestCx) checkDebuggerOutput(res *process.Result, checks []string) error {
	if idx := matcher.CheckLines(res.Stdout, checks); idx >= 0 {
		return cx.fatalProc(ClassMismatch, fmt.Sprintf("line not found in debugger output: %s", checks[idx]), res)
	}
	return nil
}

func (cx *TestCx) writeDebuggerScript(script string) (string, error) {
	path := cx.outName("debugger.script")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return "", cx.ioError(err)
	}
	return path, nil
}

type gdbRecipe struct{}

func (gdbRecipe) Execute(ctx context.Context, cx *TestCx) error {
	if err := cx.noRevisions(); err != nil {
		return err
	}
	if cx.cfg.GDB == "" {
		return cx.fatal(ClassConfig, "gdb is not configured (--gdb)")
	}
	cx = cx.withConfig(withoutDebugFlags(cx.cfg))

	prefixes := []string{"gdb", "gdbg"}
	if cx.cfg.GDBNativeRust {
		prefixes = []string{"gdb", "gdbr"}
	}
	cx.logger.Debug("using gdb", "native_rust", cx.cfg.GDBNativeRust, "version", cx.cfg.GDBVersion)

	dc, err := parseDebuggerCommands(cx.paths.File, prefixes)
	if err != nil {
		return cx.ioError(err)
	}
	if err := cx.compileForDebugger(ctx); err != nil {
		return err
	}
	ppDir, err := cx.prettyPrinterDir()
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "set charset %s\n", gdbCharset(runtime.GOOS))
	b.WriteString("show version\n")
	if cx.cfg.GDBVersion > version.GDBToInt("7.4") {
		fmt.Fprintf(&b, "add-auto-load-safe-path %s\n", strings.ReplaceAll(ppDir, `\`, `\\`))
	}
	b.WriteString("set print pretty off\n")
	fmt.Fprintf(&b, "directory %s\n", ppDir)
	fmt.Fprintf(&b, "file %s\n", strings.ReplaceAll(cx.exeName(), `\`, `\\`))
	if cx.cfg.GDBNativeRust {
		b.WriteString("set language rust\n")
	}
	for _, line := range dc.breakpointLines {
		fmt.Fprintf(&b, "break '%s':%d\n", filepath.Base(cx.paths.File), line)
	}
	b.WriteString(strings.Join(dc.commands, "\n"))
	b.WriteString("\nquit\n")

	script, err := cx.writeDebuggerScript(b.String())
	if err != nil {
		return err
	}
	cmd := process.Command{
		Path: cx.cfg.GDB,
		Args: []string{"-quiet", "-batch", "-nx", "-command=" + script},
		Env:  []string{"PYTHONPATH=" + ppDir},
	}
	res, err := cx.composeAndRun(ctx, cmd, cx.cfg.RunLibPath, "")
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "gdb failed to execute", res)
	}
	return cx.checkDebuggerOutput(res, dc.checkLines)
}

func gdbCharset(goos string) string {
	if goos == "freebsd" {
		return "ISO-8859-1"
	}
	return "UTF-8"
}

type lldbRecipe struct{}

func (lldbRecipe) Execute(ctx context.Context, cx *TestCx) error {
	if err := cx.noRevisions(); err != nil {
		return err
	}
	if cx.cfg.LLDBPythonDir == "" {
		return cx.fatal(ClassConfig, "Can't run LLDB test because LLDB's python path is not set.")
	}
	cx = cx.withConfig(withoutDebugFlags(cx.cfg))

	if err := cx.compileForDebugger(ctx); err != nil {
		return err
	}
	prefixes := []string{"lldb", "lldbg"}
	if cx.cfg.LLDBNativeRust {
		prefixes = []string{"lldb", "lldbr"}
	}
	cx.logger.Debug("using lldb", "native_rust", cx.cfg.LLDBNativeRust, "version", cx.cfg.LLDBVersion)

	dc, err := parseDebuggerCommands(cx.paths.File, prefixes)
	if err != nil {
		return cx.ioError(err)
	}
	ppDir, err := cx.prettyPrinterDir()
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("settings set auto-confirm true\n")
	b.WriteString("version\n")
	fmt.Fprintf(&b, "command script import %s\n", filepath.Join(ppDir, "lldb_rust_formatters.py"))
	b.WriteString("type summary add --no-value --python-function lldb_rust_formatters.print_val -x \".*\" --category Rust\n")
	b.WriteString("type category enable Rust\n")
	for _, line := range dc.breakpointLines {
		fmt.Fprintf(&b, "breakpoint set --file '%s' --line %d\n", filepath.Base(cx.paths.File), line)
	}
	for _, c := range dc.commands {
		b.WriteString(c)
		b.WriteByte('\n')
	}
	b.WriteString("\nquit\n")

	script, err := cx.writeDebuggerScript(b.String())
	if err != nil {
		return err
	}
	cmd := process.Command{
		Path: cx.cfg.LLDBPython,
		Args: []string{filepath.Join(ppDir, "lldb_batchmode.py"), cx.exeName(), script},
		Env:  []string{"PYTHONPATH=" + cx.cfg.LLDBPythonDir},
	}
	res, err := cx.composeAndRun(ctx, cmd, "", "")
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "Error while running LLDB", res)
	}
	return cx.checkDebuggerOutput(res, dc.checkLines)
}
