package matrix

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elmtorture/internal/config"
	"elmtorture/internal/harness"
	"elmtorture/internal/process"
	"elmtorture/internal/toolchain"
)

func TestOutcome_ExitCode(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		failed  bool
		code    int
	}{
		{"success", Outcome{Kind: Success}, false, 0},
		{"allowed compile failure", Outcome{Kind: CompileFailure, Allowed: true}, false, 0},
		{"compile failure", Outcome{Kind: CompileFailure}, true, ExitCompileFailure},
		{"allowed run failure", Outcome{Kind: RunFailure, Allowed: true}, false, 0},
		{"run failure", Outcome{Kind: RunFailure}, true, ExitRunFailure},
		{"expected compile failure", Outcome{Kind: ExpectedCompileFailureNotObserved}, true, ExitExpectedFailureNotObserved},
		{"expected run failure", Outcome{Kind: ExpectedRunFailureNotObserved}, true, ExitExpectedFailureNotObserved},
		{"infrastructure", Outcome{Kind: Infrastructure}, true, ExitInfrastructure},
		{"infrastructure ignores allowed", Outcome{Kind: Infrastructure, Allowed: true}, true, ExitInfrastructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.failed, tt.outcome.Failed())
			assert.Equal(t, tt.code, tt.outcome.ExitCode())
		})
	}
}

func TestBatchResult_ExitCode(t *testing.T) {
	h := &toolchain.Handle{Name: "elm"}
	dev := Key{Compiler: h, OptLevel: config.OptDev}
	opt := Key{Compiler: h, OptLevel: config.OptOptimize}

	batch := &BatchResult{Suites: []*SuiteResult{
		{Suite: "a", Cells: map[Key]Outcome{
			dev: {Kind: CompileFailure},
			opt: {Kind: Success},
		}},
		{Suite: "b", Cells: map[Key]Outcome{
			dev: {Kind: RunFailure, Allowed: true},
			opt: {Kind: Infrastructure},
		}},
	}}

	assert.Equal(t, 0x29, batch.ExitCode())
	assert.True(t, batch.Suites[0].Failed())
	assert.Equal(t, ExitInfrastructure, batch.Suites[1].ExitCode())
	assert.Equal(t, 0, (&BatchResult{}).ExitCode())
}

func TestOutcome_ProcessOutput(t *testing.T) {
	out := process.Output{ExitCode: 1, Stderr: []byte("boom")}

	o := Outcome{Kind: RunFailure, Err: &harness.RunError{Kind: harness.Runtime, Output: out}}
	got, ok := o.ProcessOutput()
	require.True(t, ok)
	assert.Equal(t, out, got)

	o = Outcome{Kind: CompileFailure, Err: &toolchain.CompileError{Kind: toolchain.CompilerFailed, Output: out}}
	got, ok = o.ProcessOutput()
	require.True(t, ok)
	assert.Equal(t, out, got)

	o = Outcome{Kind: Infrastructure, Err: &harness.RunError{Kind: harness.RuntimeNotFound, Err: errors.New("missing")}}
	_, ok = o.ProcessOutput()
	assert.False(t, ok)
}

func TestOutcome_MarshalJSON(t *testing.T) {
	o := Outcome{
		Kind:     RunFailure,
		Attempts: 1,
		Err:      &harness.RunError{Kind: harness.Runtime, Output: process.Output{ExitCode: 1, Stdout: []byte("out")}},
		WorkDir:  "/tmp/x",
	}

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "run failure",
		"attempts": 1,
		"exit-code": 34,
		"error": "run failed (runtime error)",
		"output": {"exit-code": 1, "stdout": "out", "stderr": ""},
		"work-dir": "/tmp/x"
	}`, string(data))
}

func TestKey_String(t *testing.T) {
	k := Key{Compiler: &toolchain.Handle{Name: "another-elm"}, OptLevel: config.OptOptimize}
	assert.Equal(t, "another-elm (optimize)", k.String())
}

func TestUniqueName(t *testing.T) {
	used := make(map[string]int)
	assert.Equal(t, "suite", uniqueName(used, "suite"))
	assert.Equal(t, "suite-2", uniqueName(used, "suite"))
	assert.Equal(t, "suite-2-2", uniqueName(used, "suite-2"))
	assert.Equal(t, "suite-3", uniqueName(used, "suite"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "elm", sanitize("elm"))
	assert.Equal(t, "_opt_bin_elm", sanitize("/opt/bin/elm"))
	assert.Equal(t, "my_compiler-0.19.1", sanitize("my compiler-0.19.1"))
	assert.Equal(t, "_", sanitize(".."))
	assert.Equal(t, "_", sanitize(""))
}

func TestFailureToken(t *testing.T) {
	var token FailureToken
	assert.False(t, token.Failed())
	token.Set()
	token.Set()
	assert.True(t, token.Failed())
}
