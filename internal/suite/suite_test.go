package suite

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elmtorture/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func makeSuite(t *testing.T, dir string) string {
	t.Helper()
	writeFile(t, filepath.Join(dir, MarkerFile), "{}")
	return dir
}

func TestParseDeclaration_Full(t *testing.T) {
	doc := `{
		// Ports are checked by the harness.
		"ports": [["command", "out", 1], ["subscription", "in", {"a": "b"}]],
		"flags": {"n": 3},
		"network": [
			{"request": {"method": "get", "url": "/first"}, "response": "one"},
		],
		"logs": "hello\n",
		"compile-fails-if": {"opt-level": ["optimize"]},
		"run-fails-if": {"any": [{"stdlib-variant": ["another"]}, {"platform": ["windows"], "opt-level": null}]},
		"skip-run-if": {"all": []}
	}`

	raw, err := ParseDeclaration([]byte(doc))
	require.NoError(t, err)

	wantPorts := []Port{
		{Type: PortCommand, Name: "out", Arg: json.RawMessage(`1`)},
		{Type: PortSubscription, Name: "in", Arg: json.RawMessage(`{"a": "b"}`)},
	}
	if diff := cmp.Diff(wantPorts, raw.Ports); diff != "" {
		t.Errorf("ports mismatch (-want +got):\n%s", diff)
	}
	wantNetwork := []NetworkItem{{Request: Request{Method: "get", URL: "/first"}, Response: "one"}}
	if diff := cmp.Diff(wantNetwork, raw.Network); diff != "" {
		t.Errorf("network mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, raw.Logs)
	assert.Equal(t, "hello\n", *raw.Logs)
	assert.True(t, raw.NeedsServer())

	compileFacts := CompileFacts{OptLevel: config.OptOptimize, Platform: PlatformLinux}
	assert.True(t, raw.CompileFailsIf.IsMet(compileFacts))
	compileFacts.OptLevel = config.OptDev
	assert.False(t, raw.CompileFailsIf.IsMet(compileFacts))

	runFacts := RunFacts{OptLevel: config.OptDev, StdlibVariant: VariantOfficial, Platform: PlatformLinux}
	assert.False(t, raw.RunFailsIf.IsMet(runFacts))
	runFacts.StdlibVariant = VariantAnother
	assert.True(t, raw.RunFailsIf.IsMet(runFacts))
	runFacts = RunFacts{OptLevel: config.OptDebug, StdlibVariant: VariantOfficial, Platform: PlatformWindows}
	assert.True(t, raw.RunFailsIf.IsMet(runFacts))

	assert.True(t, raw.SkipRunIf.IsMet(runFacts), "all([]) should be met")
}

func TestParseDeclaration_Empty(t *testing.T) {
	raw, err := ParseDeclaration([]byte(`{}`))
	require.NoError(t, err)

	assert.False(t, raw.NeedsServer())
	assert.Nil(t, raw.CompileFailsIf)
	assert.False(t, raw.CompileFailsIf.IsMet(CompileFacts{OptLevel: config.OptDev, Platform: PlatformLinux}))
	assert.False(t, raw.RunFailsIf.IsMet(RunFacts{}))
}

func TestParseDeclaration_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown top-level key", `{"log": "x"}`},
		{"compile leaf rejects stdlib-variant", `{"compile-fails-if": {"stdlib-variant": ["official"]}}`},
		{"unknown opt level", `{"run-fails-if": {"opt-level": ["fast"]}}`},
		{"unknown platform", `{"run-fails-if": {"platform": ["plan9"]}}`},
		{"bad port type", `{"ports": [["event", "p", 1]]}`},
		{"short port tuple", `{"ports": [["command", "p"]]}`},
		{"unsupported method", `{"network": [{"request": {"method": "post", "url": "/"}, "response": ""}]}`},
		{"unknown network key", `{"network": [{"request": {"method": "get", "url": "/"}, "response": "", "delay": 1}]}`},
		{"missing colon", `{"flags" {}}`},
		{"not an object", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDeclaration([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadDeclaration(t *testing.T) {
	dir := makeSuite(t, t.TempDir())

	_, err := LoadDeclaration(dir)
	var declErr *DeclarationError
	require.True(t, errors.As(err, &declErr))
	assert.Equal(t, CannotRead, declErr.Kind)
	assert.ErrorIs(t, err, os.ErrNotExist)

	writeFile(t, filepath.Join(dir, DeclarationFile), `{"flags": }`)
	_, err = LoadDeclaration(dir)
	require.True(t, errors.As(err, &declErr))
	assert.Equal(t, ParseError, declErr.Kind)

	writeFile(t, filepath.Join(dir, DeclarationFile), `{"flags": {"x": true}} // trailing comment`)
	raw, err := LoadDeclaration(dir)
	require.NoError(t, err)
	assert.JSONEq(t, `true`, string(raw.Flags["x"]))
}

func TestParseDeclaration_CommentAtEOF(t *testing.T) {
	raw, err := ParseDeclaration([]byte("{\"flags\": {\"x\": 1}}\n// note"))
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(raw.Flags["x"]))
}

func TestMakeReady(t *testing.T) {
	raw, err := ParseDeclaration([]byte(`{"flags": {"n": 1}}`))
	require.NoError(t, err)

	ready, err := MakeReady(raw, &ServerInfo{URL: "127.0.0.1:4000", Protocol: "http://"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"url": "127.0.0.1:4000", "protocol": "http://"}`, string(ready.Flags()[ReservedFlagsKey]))
	assert.NotContains(t, raw.Flags, ReservedFlagsKey, "the raw declaration should not be modified")

	out, err := json.Marshal(ready)
	require.NoError(t, err)
	assert.JSONEq(t, `{"flags": {"n": 1, "suite": {"url": "127.0.0.1:4000", "protocol": "http://"}}}`, string(out))
}

func TestMakeReady_WithoutServerAlwaysHasFlags(t *testing.T) {
	raw, err := ParseDeclaration([]byte(`{"logs": ""}`))
	require.NoError(t, err)

	ready, err := MakeReady(raw, nil)
	require.NoError(t, err)

	out, err := json.Marshal(ready)
	require.NoError(t, err)
	assert.JSONEq(t, `{"flags": {}, "logs": ""}`, string(out))
}

func TestMakeReady_ReservedKeyConflict(t *testing.T) {
	raw, err := ParseDeclaration([]byte(`{"flags": {"suite": 1}}`))
	require.NoError(t, err)

	_, err = MakeReady(raw, nil)
	assert.ErrorIs(t, err, ErrReservedFlag)

	_, err = MakeReady(raw, &ServerInfo{URL: "x", Protocol: "http://"})
	assert.ErrorIs(t, err, ErrReservedFlag)
}

func TestRootFiles(t *testing.T) {
	dir := makeSuite(t, t.TempDir())

	roots, err := RootFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultRoot}, roots)

	writeFile(t, filepath.Join(dir, TargetsFile), "src/A.elm\n\n  src/B.elm \n")
	roots, err = RootFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/A.elm", "src/B.elm"}, roots)

	writeFile(t, filepath.Join(dir, TargetsFile), "\n")
	_, err = RootFiles(dir)
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	makeSuite(t, filepath.Join(root, "b"))
	makeSuite(t, filepath.Join(root, "a"))
	makeSuite(t, filepath.Join(root, "nested", "c"))
	// Directories inside a suite are not suites of their own.
	makeSuite(t, filepath.Join(root, "a", "inner"))
	writeFile(t, filepath.Join(root, "README.md"), "not a suite")

	suites, err := Find(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "b"),
		filepath.Join(root, "nested", "c"),
	}, suites)

	single, err := Find(filepath.Join(root, "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "b")}, single)

	_, err = Find(filepath.Join(root, "README.md"))
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Dedupe([]string{"a", "./a", "b", "a/"}))
}

func TestPlatformFor(t *testing.T) {
	p, err := platformFor("darwin")
	require.NoError(t, err)
	assert.Equal(t, PlatformMacOS, p)

	_, err = platformFor("plan9")
	assert.Error(t, err)
}
