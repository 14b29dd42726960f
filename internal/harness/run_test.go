package harness

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elmtorture/internal/config"
	"elmtorture/internal/suite"
	"elmtorture/internal/testutil"
)

func readyFor(t *testing.T, doc string, server *suite.ServerInfo) *suite.Ready {
	t.Helper()
	raw, err := suite.ParseDeclaration([]byte(doc))
	require.NoError(t, err)
	ready, err := suite.MakeReady(raw, server)
	require.NoError(t, err)
	return ready
}

func runWith(t *testing.T, runtimeBody string, timeout time.Duration) (string, error) {
	t.Helper()
	runtimePath := testutil.WriteExecutable(t, t.TempDir(), "node", runtimeBody)
	suiteDir := testutil.MakeSuite(t, t.TempDir(), "{}")
	outDir := t.TempDir()

	err := Run(context.Background(), suiteDir, outDir, config.OptDev, Options{Runtime: runtimePath, Timeout: timeout}, readyFor(t, `{}`, nil))
	return outDir, err
}

func requireRunError(t *testing.T, err error, kind RunErrorKind) *RunError {
	t.Helper()
	var runErr *RunError
	require.True(t, errors.As(err, &runErr), "expected a RunError, got %v", err)
	require.Equal(t, kind, runErr.Kind, "unexpected kind, error: %v", err)
	return runErr
}

func TestRun_Success(t *testing.T) {
	_, err := runWith(t, `exit 0`, 5*time.Second)
	assert.NoError(t, err)
}

func TestRun_WritesHarnessFiles(t *testing.T) {
	server := &suite.ServerInfo{URL: "127.0.0.1:1234", Protocol: "http://"}
	runtimePath := testutil.WriteExecutable(t, t.TempDir(), "node", `
[ "$1" = "--unhandled-rejections=strict" ] || { echo "missing strict flag" >&2; exit 1; }
[ -f "$2" ] || { echo "missing main file $2" >&2; exit 1; }
exit 0`)
	suiteDir := testutil.MakeSuite(t, t.TempDir(), "{}")
	outDir := t.TempDir()
	ready := readyFor(t, `{"flags": {"n": 1}, "logs": "x\n"}`, server)

	err := Run(context.Background(), suiteDir, outDir, config.OptOptimize, Options{Runtime: runtimePath, Timeout: 5 * time.Second}, ready)
	require.NoError(t, err)

	for _, name := range []string{HarnessFile, ShimFile, ExpectedOutputFile, MainFile} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}

	mainJS, err := os.ReadFile(filepath.Join(outDir, MainFile))
	require.NoError(t, err)
	assert.Contains(t, string(mainJS), "require('./elm-optimize.js')")
	assert.Contains(t, string(mainJS), "require('./xmlhttprequest.js').XMLHttpRequest")
	assert.Contains(t, string(mainJS), "harness(generated, expectedOutput);")

	expected, err := os.ReadFile(filepath.Join(outDir, ExpectedOutputFile))
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(expected, &decoded))
	assert.JSONEq(t, `{"n": 1, "suite": {"url": "127.0.0.1:1234", "protocol": "http://"}}`, string(decoded["flags"]))
	assert.JSONEq(t, `"x\n"`, string(decoded["logs"]))
}

func TestRun_SetsTimezone(t *testing.T) {
	_, err := runWith(t, `[ "$TZ" = "Asia/Bahrain" ] || { echo "TZ=$TZ" >&2; exit 1; }`, 5*time.Second)
	assert.NoError(t, err)
}

func TestRun_NonZeroExitIsRuntimeError(t *testing.T) {
	_, err := runWith(t, `echo "Error: boom" >&2; exit 1`, 5*time.Second)

	runErr := requireRunError(t, err, Runtime)
	assert.Equal(t, 1, runErr.Output.ExitCode)
	assert.Equal(t, "Error: boom\n", string(runErr.Output.Stderr))
	assert.False(t, runErr.Infrastructure())
}

func TestRun_StdoutIsOutputProduced(t *testing.T) {
	_, err := runWith(t, `echo "debug log"`, 5*time.Second)

	runErr := requireRunError(t, err, OutputProduced)
	assert.Equal(t, "debug log\n", string(runErr.Output.Stdout))
}

func TestRun_Stderr(t *testing.T) {
	tests := []struct {
		name    string
		stderr  string
		wantErr bool
	}{
		{"dev advisory", advisory("DEV"), false},
		{"debug advisory", advisory("DEBUG"), false},
		{"advisory without newline", "Compiled in DEV mode. Follow the advice at https://elm-lang.org/0.19.1/optimize for better performance and smaller assets.", true},
		{"advisory plus more", advisory("DEV") + "warning\n", true},
		{"other", "something\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stderrFile := filepath.Join(t.TempDir(), "stderr")
			require.NoError(t, os.WriteFile(stderrFile, []byte(tt.stderr), 0644))

			_, err := runWith(t, `cat "`+stderrFile+`" >&2`, 5*time.Second)
			if tt.wantErr {
				requireRunError(t, err, OutputProduced)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	_, err := runWith(t, `echo "started"; exec sleep 30`, 200*time.Millisecond)

	runErr := requireRunError(t, err, Timeout)
	assert.Equal(t, 200*time.Millisecond, runErr.After)
	assert.Equal(t, "started\n", string(runErr.Output.Stdout))
	assert.False(t, runErr.Infrastructure())
}

func TestRun_RuntimeNotFound(t *testing.T) {
	suiteDir := testutil.MakeSuite(t, t.TempDir(), "{}")

	err := Run(context.Background(), suiteDir, t.TempDir(), config.OptDev,
		Options{Runtime: filepath.Join(t.TempDir(), "no-node"), Timeout: time.Second}, readyFor(t, `{}`, nil))

	runErr := requireRunError(t, err, RuntimeNotFound)
	assert.True(t, runErr.Infrastructure())
}

func TestRun_NotASuite(t *testing.T) {
	err := Run(context.Background(), t.TempDir(), t.TempDir(), config.OptDev,
		Options{Runtime: "node", Timeout: time.Second}, readyFor(t, `{}`, nil))

	requireRunError(t, err, SuiteDoesNotExist)
}

func TestRun_UnwritableOutDir(t *testing.T) {
	runtimePath := testutil.WriteExecutable(t, t.TempDir(), "node", `exit 0`)
	suiteDir := testutil.MakeSuite(t, t.TempDir(), "{}")

	err := Run(context.Background(), suiteDir, filepath.Join(t.TempDir(), "missing"), config.OptDev,
		Options{Runtime: runtimePath, Timeout: time.Second}, readyFor(t, `{}`, nil))

	runErr := requireRunError(t, err, WritingHarness)
	assert.True(t, runErr.Infrastructure())
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "elm-debug.js", ArtifactName(config.OptDebug))
	assert.Equal(t, "elm-dev.js", ArtifactName(config.OptDev))
}
