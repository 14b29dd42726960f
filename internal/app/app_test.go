package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elmtorture/internal/config"
	"elmtorture/internal/matrix"
	"elmtorture/internal/reporting"
	"elmtorture/internal/testutil"
)

type testEnv struct {
	cfg    *Config
	stdout *bytes.Buffer
	root   string
}

func newTestEnv(t *testing.T, runtimeBody string) *testEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	compiler, _ := testutil.WriteCompiler(t, "elm", testutil.CompilerOptions{})
	node := testutil.WriteExecutable(t, t.TempDir(), "node", runtimeBody)
	root := t.TempDir()

	var stdout, stderr bytes.Buffer
	cfg := NewConfig(root)
	cfg.Output = reporting.FormatQuiet
	cfg.Stdout = &stdout
	cfg.Stderr = &stderr
	cfg.Overrides = config.Config{
		ElmCompilers: []string{compiler},
		Node:         &node,
		OutDir:       filepath.Join(t.TempDir(), "out"),
	}
	return &testEnv{cfg: cfg, stdout: &stdout, root: root}
}

func (e *testEnv) run(t *testing.T) int {
	t.Helper()
	application, err := NewApplication(e.cfg)
	require.NoError(t, err)
	return application.Run(context.Background())
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("tests")
	assert.Equal(t, "tests", cfg.Suites)
	assert.Equal(t, reporting.FormatText, cfg.Output)
	assert.Empty(t, cfg.ConfigPath)
	assert.False(t, cfg.FailFast)
}

func TestApplication_RunPassingSuites(t *testing.T) {
	env := newTestEnv(t, "exit 0")
	testutil.MakeSuite(t, filepath.Join(env.root, "a"), `{}`)
	testutil.MakeSuite(t, filepath.Join(env.root, "b"), `{"skip-run-if": {}}`)

	code := env.run(t)

	assert.Equal(t, 0, code)
	assert.Equal(t, "0 of 2 suites failed\n", env.stdout.String())
}

func TestApplication_RunFailingSuite(t *testing.T) {
	env := newTestEnv(t, `echo "Error: boom" >&2; exit 1`)
	testutil.MakeSuite(t, filepath.Join(env.root, "crash"), `{}`)

	code := env.run(t)

	assert.Equal(t, matrix.ExitRunFailure, code)
	assert.Contains(t, env.stdout.String(), "Suite "+filepath.Join(env.root, "crash")+" failed at run time.")
	assert.Contains(t, env.stdout.String(), "Error: boom")
}

func TestApplication_WritesReport(t *testing.T) {
	env := newTestEnv(t, "exit 0")
	testutil.MakeSuite(t, filepath.Join(env.root, "a"), `{}`)
	env.cfg.ReportDir = filepath.Join(t.TempDir(), "reports")

	require.Equal(t, 0, env.run(t))

	entries, err := os.ReadDir(env.cfg.ReportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^elm-torture-[0-9a-f-]{36}\.json$`, entries[0].Name())
}

func TestApplication_InfrastructureFailures(t *testing.T) {
	t.Run("missing suite directory", func(t *testing.T) {
		env := newTestEnv(t, "exit 0")
		env.cfg.Suites = filepath.Join(env.root, "missing")
		assert.Equal(t, matrix.ExitInfrastructure, env.run(t))
	})

	t.Run("unresolvable compiler", func(t *testing.T) {
		env := newTestEnv(t, "exit 0")
		testutil.MakeSuite(t, filepath.Join(env.root, "a"), `{}`)
		env.cfg.Overrides.ElmCompilers = []string{filepath.Join(t.TempDir(), "no-such-elm")}
		assert.Equal(t, matrix.ExitInfrastructure, env.run(t))
	})
}

func TestApplication_ShowConfig(t *testing.T) {
	env := newTestEnv(t, "exit 0")
	env.cfg.ShowConfig = filepath.Join(t.TempDir(), "dump.json")

	require.Equal(t, 0, env.run(t))

	loaded, err := config.LoadConfigFromFile(env.cfg.ShowConfig)
	require.NoError(t, err)
	assert.Equal(t, env.cfg.Overrides.ElmCompilers, loaded.ElmCompilers)
	assert.Equal(t, *env.cfg.Overrides.Node, *loaded.Node)
}

func TestNewApplication_BadConfigFile(t *testing.T) {
	env := newTestEnv(t, "exit 0")
	env.cfg.ConfigPath = filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(env.cfg.ConfigPath, []byte("no-such-key: 1\n"), 0644))

	_, err := NewApplication(env.cfg)
	assert.Error(t, err)
}
