package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stubs need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "stub.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestRun_CapturesStreamsAndExitCode(t *testing.T) {
	script := writeScript(t, `echo "out $1"; echo "err" >&2; exit 3`)

	out, err := Run(context.Background(), Command{Path: script, Args: []string{"arg"}})
	require.NoError(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.False(t, out.Success())
	assert.Equal(t, "out arg\n", string(out.Stdout))
	assert.Equal(t, "err\n", string(out.Stderr))
	assert.Contains(t, out.String(), " = Exit code: 3 =")
}

func TestRun_EnvAndDir(t *testing.T) {
	script := writeScript(t, `printf '%s %s' "$TORTURE_TEST" "$(pwd)"`)
	dir := t.TempDir()

	out, err := Run(context.Background(), Command{
		Path: script,
		Dir:  dir,
		Env:  map[string]string{"TORTURE_TEST": "set"},
	})
	require.NoError(t, err)
	assert.True(t, out.Success())

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, []string{"set " + dir, "set " + resolved}, string(out.Stdout))
}

func TestRun_StdinIsClosed(t *testing.T) {
	script := writeScript(t, `cat; echo done`)

	out, err := Run(context.Background(), Command{Path: script, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "done\n", string(out.Stdout))
}

func TestRun_TimeoutKeepsPartialOutput(t *testing.T) {
	script := writeScript(t, `echo partial; echo warn >&2; exec sleep 30`)

	start := time.Now()
	_, err := Run(context.Background(), Command{Path: script, Timeout: 300 * time.Millisecond})
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr), "expected a timeout, got %v", err)
	assert.Equal(t, 300*time.Millisecond, timeoutErr.After)
	assert.Equal(t, "partial\n", string(timeoutErr.Output.Stdout))
	assert.Equal(t, "warn\n", string(timeoutErr.Output.Stderr))
	assert.Less(t, elapsed, 10*time.Second)
}

func TestRun_StartFailure(t *testing.T) {
	_, err := Run(context.Background(), Command{Path: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestInherit(t *testing.T) {
	t.Setenv("TORTURE_INHERIT_SET", "yes")

	env := Inherit("TORTURE_INHERIT_SET", "TORTURE_INHERIT_DEFINITELY_UNSET")
	assert.Equal(t, map[string]string{"TORTURE_INHERIT_SET": "yes"}, env)
}

func TestLookPath(t *testing.T) {
	script := writeScript(t, `exit 0`)
	t.Setenv("PATH", filepath.Dir(script))

	path, err := LookPath("stub.sh")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	_, err = LookPath("no-such-program-here")
	assert.Error(t, err)
}
