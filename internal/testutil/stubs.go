// Package testutil writes stand-in compiler and runtime executables for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireShell skips the test on platforms without /bin/sh.
func RequireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub executables are POSIX shell scripts")
	}
}

// WriteExecutable writes a /bin/sh script called name into dir and returns its absolute path.
func WriteExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()
	RequireShell(t)
	path, err := filepath.Abs(filepath.Join(dir, name))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

// CompilerOptions shapes the behaviour of a stub compiler.
type CompilerOptions struct {
	// Variant is printed for the stdlib variant probe. Empty makes the probe fail.
	Variant string
	// FailFirst makes the first N make invocations exit 1.
	FailFirst int
	// AlwaysFail makes every make invocation exit 1.
	AlwaysFail bool
	// FailIfArg makes make invocations fail when this argument is present.
	FailIfArg string
	// Stderr is written by successful make invocations.
	Stderr string
	// Artifact is written to the --output file.
	Artifact string
}

// CompilerScript returns a stub compiler body. Every make invocation is
// counted in the file "count" next to the script, and its arguments are
// appended to "args".
func CompilerScript(dir string, opts CompilerOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "state=%q\n", dir)
	b.WriteString(`if [ "$1" = "--stdlib-variant" ]; then` + "\n")
	if opts.Variant == "" {
		b.WriteString("  exit 1\n")
	} else {
		fmt.Fprintf(&b, "  echo %q\n  exit 0\n", opts.Variant)
	}
	b.WriteString("fi\n")
	b.WriteString(`n=$(cat "$state/count" 2>/dev/null || echo 0)` + "\n")
	b.WriteString("n=$((n+1))\n")
	b.WriteString(`echo "$n" > "$state/count"` + "\n")
	b.WriteString(`echo "$@" >> "$state/args"` + "\n")
	if opts.AlwaysFail {
		b.WriteString("echo \"compile error $n\" >&2\nexit 1\n")
	}
	if opts.FailFirst > 0 {
		fmt.Fprintf(&b, "if [ \"$n\" -le %d ]; then echo \"compile error $n\" >&2; exit 1; fi\n", opts.FailFirst)
	}
	if opts.FailIfArg != "" {
		fmt.Fprintf(&b, "for a in \"$@\"; do if [ \"$a\" = %q ]; then echo \"rejected $a\" >&2; exit 1; fi; done\n", opts.FailIfArg)
	}
	artifact := opts.Artifact
	if artifact == "" {
		artifact = "// compiled"
	}
	b.WriteString("out=\"\"\n")
	b.WriteString("while [ $# -gt 0 ]; do\n")
	b.WriteString("  if [ \"$1\" = \"--output\" ]; then out=\"$2\"; fi\n")
	b.WriteString("  shift\n")
	b.WriteString("done\n")
	fmt.Fprintf(&b, "[ -n \"$out\" ] && printf '%%s\\n' %q > \"$out\"\n", artifact)
	if opts.Stderr != "" {
		fmt.Fprintf(&b, "printf '%%s' %q >&2\n", opts.Stderr)
	}
	b.WriteString("exit 0\n")
	return b.String()
}

// WriteCompiler writes a stub compiler named name into a fresh directory and
// returns its path together with the directory holding its state files.
func WriteCompiler(t *testing.T, name string, opts CompilerOptions) (path, stateDir string) {
	t.Helper()
	stateDir = t.TempDir()
	return WriteExecutable(t, stateDir, name, CompilerScript(stateDir, opts)), stateDir
}

// Count returns how many times the stub compiler in stateDir ran make.
func Count(t *testing.T, stateDir string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(stateDir, "count"))
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	var n int
	_, err = fmt.Sscanf(strings.TrimSpace(string(data)), "%d", &n)
	require.NoError(t, err)
	return n
}

// Args returns the argument lines recorded by the stub compiler in stateDir.
func Args(t *testing.T, stateDir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(stateDir, "args"))
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// MakeSuite creates a minimal suite in dir with the given declaration.
func MakeSuite(t *testing.T, dir, declaration string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "elm.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.elm"), []byte("module Main exposing (main)\n"), 0644))
	if declaration != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "output.json"), []byte(declaration), 0644))
	}
	return dir
}
