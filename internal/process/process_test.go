package process

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
}

func TestRunner_Run(t *testing.T) {
	skipOnWindows(t)
	t.Setenv(DylibEnvVar(runtime.GOOS), "/existing")

	r := NewRunner(false, nil)
	res, err := r.Run(context.Background(), Command{
		Path:  "/bin/sh",
		Args:  []string{"-c", `echo "$` + DylibEnvVar(runtime.GOOS) + `"; echo "$EXTRA"; cat; echo oops >&2; exit 3`},
		Env:   []string{"EXTRA=set"},
		Stdin: []byte("from stdin\n"),
	}, "/lib", "/aux")
	require.NoError(t, err)

	sep := string(os.PathListSeparator)
	require.Equal(t, 3, res.Status)
	require.False(t, res.Success())
	require.Equal(t, "/lib"+sep+"/aux"+sep+"/existing\nset\nfrom stdin\n", res.Stdout)
	require.Equal(t, "oops\n", res.Stderr)
	require.True(t, strings.HasPrefix(res.Cmdline, "/bin/sh -c"))
}

func TestRunner_RemoveEnv(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("RUSTFLAGS", "-O")

	res, err := NewRunner(false, nil).Run(context.Background(), Command{
		Path:      "/bin/sh",
		Args:      []string{"-c", `echo "[$RUSTFLAGS]"`},
		RemoveEnv: []string{"RUSTFLAGS"},
	}, "", "")
	require.NoError(t, err)
	require.Equal(t, "[]\n", res.Stdout)
}

func TestRunner_InvalidUTF8(t *testing.T) {
	skipOnWindows(t)
	_, err := NewRunner(false, nil).Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", `printf '\377\376'`},
	}, "", "")
	require.Error(t, err)
}

func TestRunner_MissingBinary(t *testing.T) {
	_, err := NewRunner(false, nil).Run(context.Background(), Command{Path: "/definitely/not/here"}, "", "")
	require.Error(t, err)
}

func TestRunner_VerboseEcho(t *testing.T) {
	skipOnWindows(t)
	var buf bytes.Buffer
	_, err := NewRunner(true, &buf).Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", "echo hello"},
	}, "", "")
	require.NoError(t, err)
	require.Contains(t, buf.String(), "------stdout------")
	require.Contains(t, buf.String(), "hello")
}

func TestDylibEnvVar(t *testing.T) {
	tests := map[string]string{
		"windows": "PATH",
		"darwin":  "DYLD_LIBRARY_PATH",
		"haiku":   "LIBRARY_PATH",
		"linux":   "LD_LIBRARY_PATH",
		"freebsd": "LD_LIBRARY_PATH",
	}
	for goos, want := range tests {
		if got := DylibEnvVar(goos); got != want {
			t.Errorf("DylibEnvVar(%s) = %s, want %s", goos, got, want)
		}
	}
}

func TestMakeCmdline(t *testing.T) {
	got := MakeCmdline("linux", "LD_LIBRARY_PATH", "/lib", "rustc", []string{"foo bar.rs", "-O"})
	require.True(t, strings.HasPrefix(got, "rustc "), got)
	require.True(t, strings.HasSuffix(got, " -O"), got)
	args, err := shellquote.Split(got)
	require.NoError(t, err)
	require.Equal(t, []string{"rustc", "foo bar.rs", "-O"}, args)

	got = MakeCmdline("windows", "PATH", `C:\lib`, "rustc", []string{"foo.rs"})
	require.True(t, strings.HasPrefix(got, `PATH="C:\\lib" `), got)
	require.True(t, strings.HasSuffix(got, "rustc foo.rs"), got)
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "sub", "foo.stage1")
	res := &Result{Stdout: "out", Stderr: "err"}

	require.NoError(t, Dump(base, "", res))
	require.NoError(t, Dump(base, "rev1", res))

	for _, name := range []string{"foo.stage1.out", "foo.stage1.err", "foo.stage1.rev1.out", "foo.stage1.rev1.err"} {
		_, err := os.Stat(filepath.Join(dir, "sub", name))
		require.NoError(t, err, name)
	}
}
