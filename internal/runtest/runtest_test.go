package runtest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rogpeppe/go-internal/txtar"
	"github.com/stretchr/testify/require"

	"compiletest/internal/config"
	"compiletest/internal/domain"
	"compiletest/internal/process"
	"compiletest/internal/stamp"
)

// fakeRustc stands in for the compiler. The first argument is the input.
// A <stem>.compile file next to the input is sourced to script the
// compilation; the produced binary is <stem>.run, or a script exiting 0.
// Reading from stdin pretty-prints by echoing the source back.
const fakeRustc = `#!/bin/sh
in="$1"
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
if [ -n "$FAKE_RUSTC_LOG" ]; then echo "$*" >> "$FAKE_RUSTC_LOG"; fi
if [ "$in" = "-" ]; then
  case "$*" in
    *unpretty=*) cat ;;
    *) cat > /dev/null ;;
  esac
  exit 0
fi
stem="${in%.rs}"
if [ -f "$stem.compile" ]; then . "$stem.compile"; fi
if [ -n "$out" ]; then
  if [ -f "$stem.run" ]; then cp "$stem.run" "$out"; else printf '#!/bin/sh\nexit 0\n' > "$out"; fi
  chmod +x "$out"
fi
exit 0
`

type fixture struct {
	cfg *config.Config
	src string
	log string
}

func newFixture(t *testing.T, mode config.Mode, archive string) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	for _, f := range txtar.Parse([]byte(archive)).Files {
		path := filepath.Join(src, f.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o755))
	}
	rustc := filepath.Join(dir, "rustc")
	require.NoError(t, os.WriteFile(rustc, []byte(fakeRustc), 0o755))

	log := filepath.Join(dir, "rustc.log")
	t.Setenv("FAKE_RUSTC_LOG", log)

	cfg := config.New()
	cfg.SrcBase = src
	cfg.BuildBase = filepath.Join(dir, "build")
	cfg.RustcPath = rustc
	cfg.Mode = mode
	cfg.Target = "x86_64-unknown-linux-gnu"
	cfg.Host = "x86_64-unknown-linux-gnu"
	cfg.StageID = "stage1-x86_64-unknown-linux-gnu"
	return &fixture{cfg: cfg, src: src, log: log}
}

func (f *fixture) paths(name string) domain.TestPaths {
	return domain.TestPaths{File: filepath.Join(f.src, name)}
}

func (f *fixture) run(name, rev string) error {
	eng := NewEngine(f.cfg, process.NewRunner(false, io.Discard))
	return eng.Run(context.Background(), f.paths(name), rev)
}

func (f *fixture) invocations(t *testing.T) []string {
	t.Helper()
	b, err := os.ReadFile(f.log)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func requireFailure(t *testing.T, err error, class Class, msg string) *Error {
	t.Helper()
	var e *Error
	require.True(t, errors.As(err, &e), "expected *Error, got %v", err)
	require.Equal(t, class, e.Class, e.Error())
	require.Contains(t, e.Message, msg)
	return e
}

func TestRun_RunPass(t *testing.T) {
	f := newFixture(t, config.RunPass, `
-- a.rs --
// aux-build:helper.rs
fn main() {}
-- auxiliary/helper.rs --
pub fn helper() {}
`)
	require.NoError(t, f.run("a.rs", ""))

	calls := f.invocations(t)
	require.Len(t, calls, 2)
	require.Contains(t, calls[0], filepath.Join("auxiliary", "helper.rs"))
	require.Contains(t, calls[0], "--crate-type dylib")
	require.Contains(t, calls[1], "--error-format json")
	require.Contains(t, calls[1], "-C prefer-dynamic")

	hash, err := f.cfg.StampHash()
	require.NoError(t, err)
	contents, err := os.ReadFile(StampPath(f.cfg, f.paths("a.rs"), ""))
	require.NoError(t, err)
	require.Equal(t, hash, string(contents))
}

func TestRun_StaleAfterAuxTouched(t *testing.T) {
	f := newFixture(t, config.RunPass, `
-- a.rs --
// aux-build:helper.rs
fn main() {}
-- auxiliary/helper.rs --
pub fn helper() {}
`)
	past := time.Now().Add(-time.Hour)
	for _, p := range []string{"a.rs", "auxiliary/helper.rs"} {
		require.NoError(t, os.Chtimes(filepath.Join(f.src, p), past, past))
	}
	require.NoError(t, f.run("a.rs", ""))

	paths := f.paths("a.rs")
	aux := []string{"helper.rs"}
	require.True(t, IsUpToDate(f.cfg, paths, "", aux, nil, stamp.Stamp{}))

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(f.src, "auxiliary", "helper.rs"), future, future))
	require.False(t, IsUpToDate(f.cfg, paths, "", aux, nil, stamp.Stamp{}))

	other := f.cfg.Clone()
	other.TargetRustcFlags = "-O"
	require.NoError(t, os.Chtimes(filepath.Join(f.src, "auxiliary", "helper.rs"), past, past))
	require.True(t, IsUpToDate(f.cfg, paths, "", aux, nil, stamp.Stamp{}))
	require.False(t, IsUpToDate(other, paths, "", aux, nil, stamp.Stamp{}))
}

func TestRun_RunPassFailures(t *testing.T) {
	tests := []struct {
		name    string
		archive string
		class   Class
		msg     string
	}{
		{
			name: "binary exits non-zero",
			archive: `
-- a.rs --
fn main() {}
-- a.run --
#!/bin/sh
echo boom >&2
exit 1
`,
			class: ClassProcess,
			msg:   "test run failed!",
		},
		{
			name: "compilation fails",
			archive: `
-- a.rs --
fn main() {}
-- a.compile --
exit 1
`,
			class: ClassProcess,
			msg:   "compilation failed!",
		},
		{
			name: "annotations on run-pass",
			archive: `
-- a.rs --
fn main() {} //~ WARN unused
`,
			class: ClassConfig,
			msg:   "should be moved to ui/",
		},
		{
			name: "missing auxiliary",
			archive: `
-- a.rs --
// aux-build:nope.rs
fn main() {}
`,
			class: ClassIO,
			msg:   "nope.rs` source not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.RunPass, tt.archive)
			err := f.run("a.rs", "")
			requireFailure(t, err, tt.class, tt.msg)
			_, statErr := os.Stat(StampPath(f.cfg, f.paths("a.rs"), ""))
			require.True(t, errors.Is(statErr, os.ErrNotExist))
		})
	}
}

func TestRun_FailureReport(t *testing.T) {
	f := newFixture(t, config.RunPass, `
-- a.rs --
fn main() {}
-- a.run --
#!/bin/sh
echo boom >&2
exit 3
`)
	err := f.run("a.rs", "")
	require.Error(t, err)
	report := err.Error()
	require.Contains(t, report, "error: test run failed!")
	require.Contains(t, report, "status: exit code: 3")
	require.Contains(t, report, "command: ")
	require.Contains(t, report, "boom")
}

// diag prints one JSON diagnostic for the input file at line $1 with
// message $2.
const diagHelper = `diag() {
  printf '{"message":"%s","level":"error","spans":[{"file_name":"%s","line_start":%s,"line_end":%s,"column_start":1,"column_end":2,"is_primary":true}],"children":[],"rendered":"error: %s\\n"}\n' "$2" "$in" "$1" "$1" "$2" >&2
}
`

func TestRun_CompileFail(t *testing.T) {
	tests := []struct {
		name    string
		archive string
		class   Class
		msg     string
		details []string
	}{
		{
			name: "expected errors match",
			archive: `
-- a.rs --
fn main() {
    let x: u32 = "a"; //~ ERROR mismatched types
}
-- a.compile --
` + diagHelper + `diag 2 "mismatched types"
exit 101
`,
		},
		{
			name: "expected error missing",
			archive: `
-- a.rs --
fn main() {
    let x: u32 = "a"; //~ ERROR something else
}
-- a.compile --
` + diagHelper + `diag 2 "mismatched types"
exit 101
`,
			class: ClassMismatch,
			msg:   "1 unexpected errors found, 1 expected errors not found",
			details: []string{
				"unexpected error: '2:1: 2:2: mismatched types'",
				"expected error not found: something else",
			},
		},
		{
			name: "compiles successfully",
			archive: `
-- a.rs --
// error-pattern: nope
fn main() {}
`,
			class: ClassProcess,
			msg:   "compile-fail test compiled successfully!",
		},
		{
			name: "wrong exit status",
			archive: `
-- a.rs --
// error-pattern: nope
fn main() {}
-- a.compile --
exit 1
`,
			class: ClassProcess,
			msg:   "failure produced the wrong error: exit code: 1",
		},
		{
			name: "internal compiler error",
			archive: `
-- a.rs --
// error-pattern: boom
fn main() {}
-- a.compile --
echo "error: internal compiler error: boom" >&2
exit 101
`,
			class: ClassICE,
			msg:   "compiler encountered internal error",
		},
		{
			name: "error patterns in order",
			archive: `
-- a.rs --
// error-pattern: cannot find
// error-pattern: aborting
fn main() {}
-- a.compile --
echo "error: cannot find value" >&2
echo "error: aborting due to previous error" >&2
exit 101
`,
		},
		{
			name: "error pattern missing",
			archive: `
-- a.rs --
// error-pattern: aborting
// error-pattern: cannot find
fn main() {}
-- a.compile --
echo "error: cannot find value" >&2
echo "error: aborting due to previous error" >&2
exit 101
`,
			class: ClassMismatch,
			msg:   "error pattern 'cannot find' not found!",
		},
		{
			name: "no error pattern",
			archive: `
-- a.rs --
fn main() {}
-- a.compile --
exit 101
`,
			class: ClassConfig,
			msg:   "no error pattern specified in",
		},
		{
			name: "patterns and annotations",
			archive: `
-- a.rs --
// error-pattern: mismatched
fn main() {
    let x: u32 = "a"; //~ ERROR mismatched types
}
-- a.compile --
exit 101
`,
			class: ClassConfig,
			msg:   "both error pattern and expected errors specified",
		},
		{
			name: "forbidden output",
			archive: `
-- a.rs --
// error-pattern: oops
// forbid-output: secret
fn main() {}
-- a.compile --
echo "oops, secret" >&2
exit 101
`,
			class:   ClassMismatch,
			msg:     "forbidden pattern found in compiler output",
			details: []string{"forbidden pattern 'secret' found"},
		},
		{
			name: "must compile successfully",
			archive: `
-- a.rs --
// must-compile-successfully
fn main() {}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.CompileFail, tt.archive)
			err := f.run("a.rs", "")
			if tt.class == "" {
				require.NoError(t, err)
				return
			}
			e := requireFailure(t, err, tt.class, tt.msg)
			for _, d := range tt.details {
				found := false
				for _, got := range e.Details {
					if strings.Contains(got, d) {
						found = true
					}
				}
				require.True(t, found, "detail %q not in %q", d, e.Details)
			}
		})
	}
}

func TestRun_RunFail(t *testing.T) {
	tests := []struct {
		name  string
		run   string
		class Class
		msg   string
	}{
		{name: "panics", run: "echo 'thread main panicked at boom' >&2\nexit 101\n"},
		{name: "valgrind error", run: "exit 100\n", class: ClassProcess, msg: "isn't valgrind-clean"},
		{name: "succeeds", run: "exit 0\n", class: ClassProcess, msg: "failure produced the wrong error"},
		{name: "wrong message", run: "echo other >&2\nexit 101\n", class: ClassMismatch, msg: "error pattern 'panicked' not found!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.RunFail, `
-- a.rs --
// error-pattern: panicked
fn main() {}
-- a.run --
#!/bin/sh
`+tt.run)
			err := f.run("a.rs", "")
			if tt.class == "" {
				require.NoError(t, err)
				return
			}
			requireFailure(t, err, tt.class, tt.msg)
		})
	}
}

func TestRun_Revisions(t *testing.T) {
	f := newFixture(t, config.RunPass, `
-- a.rs --
// revisions: good bad
//[bad] compile-flags: --cfg broken
fn main() {}
-- a.compile --
case "$*" in
  *broken*) exit 1 ;;
esac
`)
	require.NoError(t, f.run("a.rs", "good"))
	_, err := os.Stat(StampPath(f.cfg, f.paths("a.rs"), "good"))
	require.NoError(t, err)

	e := requireFailure(t, f.run("a.rs", "bad"), ClassProcess, "compilation failed!")
	require.Equal(t, "bad", e.Revision)
	require.Contains(t, e.Error(), "error in revision `bad`")

	calls := f.invocations(t)
	require.Contains(t, calls[0], "--cfg good")
	require.NotContains(t, calls[0], "broken")
	require.Contains(t, calls[1], "--cfg bad")

	requireFailure(t, f.run("a.rs", ""), ClassProcess, "compilation failed!")
}

func TestRun_Incremental(t *testing.T) {
	f := newFixture(t, config.Incremental, `
-- a.rs --
// revisions: rpass1 cfail2 rpass3
//[cfail2] error-pattern: boom
fn main() {}
-- a.compile --
case "$*" in
  *"--cfg cfail2"*) echo "error: boom" >&2; exit 101 ;;
esac
`)
	require.NoError(t, f.run("a.rs", ""))

	incDir := OutputBase(f.cfg, f.paths("a.rs"), "") + ".inc"
	info, err := os.Stat(incDir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	calls := f.invocations(t)
	require.Len(t, calls, 3)
	for i, rev := range []string{"rpass1", "cfail2", "rpass3"} {
		require.Contains(t, calls[i], "--cfg "+rev)
		require.Contains(t, calls[i], "incremental="+incDir)
		require.Contains(t, calls[i], "-Z incremental-info")
	}
	require.NotContains(t, calls[1], "--error-format json")
}

func TestRun_IncrementalBadRevision(t *testing.T) {
	f := newFixture(t, config.Incremental, `
-- a.rs --
// revisions: rpass1 bogus2
fn main() {}
`)
	e := requireFailure(t, f.run("a.rs", ""), ClassConfig, "revision name must begin with rpass, rfail, or cfail")
	require.Equal(t, "bogus2", e.Revision)
	require.Empty(t, f.invocations(t))
}

func TestRun_IncrementalWithoutRevisions(t *testing.T) {
	f := newFixture(t, config.Incremental, `
-- a.rs --
fn main() {}
`)
	requireFailure(t, f.run("a.rs", ""), ClassConfig, "incremental tests require a list of revisions")
}

const uiArchive = `
-- a.rs --
fn main() { let x: u32 = "a"; } //~ ERROR mismatched types
-- a.compile --
printf '{"message":"mismatched types","level":"error","spans":[{"file_name":"%s","line_start":1,"line_end":1,"column_start":1,"column_end":2,"is_primary":true}],"children":[],"rendered":"error: mismatched types at %s\\n"}\n' "$in" "$in" >&2
exit 101
`

func TestRun_UI(t *testing.T) {
	t.Run("matches reference", func(t *testing.T) {
		f := newFixture(t, config.Ui, uiArchive+"-- a.stderr --\nerror: mismatched types at $DIR/a.rs\n")
		require.NoError(t, f.run("a.rs", ""))
	})

	t.Run("differs from reference", func(t *testing.T) {
		f := newFixture(t, config.Ui, uiArchive+"-- a.stderr --\nerror: something else\n")
		e := requireFailure(t, f.run("a.rs", ""), ClassMismatch, "output differs from the reference files")
		require.Contains(t, strings.Join(e.Details, "\n"), "-error: something else")

		saved, err := os.ReadFile(OutputBase(f.cfg, f.paths("a.rs"), "") + ".stderr")
		require.NoError(t, err)
		require.Equal(t, "error: mismatched types at $DIR/a.rs\n", string(saved))
	})

	t.Run("bless", func(t *testing.T) {
		f := newFixture(t, config.Ui, uiArchive)
		f.cfg.Bless = true
		require.NoError(t, f.run("a.rs", ""))
		golden, err := os.ReadFile(filepath.Join(f.src, "a.stderr"))
		require.NoError(t, err)
		require.Equal(t, "error: mismatched types at $DIR/a.rs\n", string(golden))
	})

	t.Run("compare mode falls back", func(t *testing.T) {
		f := newFixture(t, config.Ui, uiArchive+"-- a.stderr --\nerror: mismatched types at $DIR/a.rs\n")
		f.cfg.CompareMode = "nll"
		require.NoError(t, f.run("a.rs", ""))
		require.Contains(t, f.invocations(t)[0], "-Zborrowck=mir")
	})
}

func TestRun_Pretty(t *testing.T) {
	t.Run("converges", func(t *testing.T) {
		f := newFixture(t, config.Pretty, `
-- a.rs --
fn main() {}
`)
		require.NoError(t, f.run("a.rs", ""))
		calls := f.invocations(t)
		require.Len(t, calls, 3)
		require.Contains(t, calls[0], "unpretty=normal")
		require.Contains(t, calls[2], "-Zno-trans")
	})

	t.Run("pp-exact differs", func(t *testing.T) {
		f := newFixture(t, config.Pretty, `
-- a.rs --
// pp-exact:a.pp
fn main() {}
-- a.pp --
fn main() { }
`)
		requireFailure(t, f.run("a.rs", ""), ClassMismatch, "pretty-printed source does not match expected source")
	})
}

func TestRun_CodegenUnits(t *testing.T) {
	f := newFixture(t, config.CodegenUnits, `
-- a.rs --
fn main() {} //~ TRANS_ITEM fn a::main[0] @@ a[External]
//~ TRANS_ITEM fn a::gone[0]
-- a.compile --
echo "TRANS_ITEM fn a::main[0] @@ a[External]"
echo "TRANS_ITEM fn a::extra[0] @@ a[Internal]"
`)
	e := requireFailure(t, f.run("a.rs", ""), ClassMismatch, "codegen units")
	require.Equal(t, []string{
		"These items should have been contained but were not:",
		"TRANS_ITEM fn a::gone[0]",
		"These items were contained but should not have been:",
		"TRANS_ITEM fn a::extra[0] @@ a[Internal]",
	}, e.Details)
}
