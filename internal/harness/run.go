package harness

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"elmtorture/internal/config"
	"elmtorture/internal/process"
	"elmtorture/internal/suite"
	"elmtorture/pkg/logging"
)

//go:embed assets/harness.js
var harnessScript []byte

//go:embed assets/xmlhttprequest.js
var xmlHTTPRequestShim []byte

const (
	HarnessFile        = "harness.js"
	ShimFile           = "xmlhttprequest.js"
	ExpectedOutputFile = "output.json"
	MainFile           = "main.js"

	// Timezone has no daylight saving changes, so dates are reproducible.
	Timezone = "Asia/Bahrain"
)

// benignStderr lists the compiler advisories printed by dev and debug builds at startup.
var benignStderr = []string{
	advisory("DEV"),
	advisory("DEBUG"),
}

func advisory(mode string) string {
	return "Compiled in " + mode + " mode. Follow the advice at https://elm-lang.org/0.19.1/optimize for better performance and smaller assets.\n"
}

// ArtifactName is the file the compiler writes for level, relative to the output directory.
func ArtifactName(level config.OptimizationLevel) string {
	return "elm-" + level.ID() + ".js"
}

// RunErrorKind classifies RunError.
type RunErrorKind int

const (
	SuiteDoesNotExist RunErrorKind = iota
	RuntimeNotFound
	WritingHarness
	WritingExpectedOutput
	Process
	Runtime
	OutputProduced
	Timeout
)

func (k RunErrorKind) String() string {
	switch k {
	case SuiteDoesNotExist:
		return "suite does not exist"
	case RuntimeNotFound:
		return "runtime not found"
	case WritingHarness:
		return "writing harness"
	case WritingExpectedOutput:
		return "writing expected output"
	case Process:
		return "running runtime"
	case Runtime:
		return "runtime error"
	case OutputProduced:
		return "unexpected output"
	default:
		return "timeout"
	}
}

// RunError is returned by Run.
type RunError struct {
	Kind RunErrorKind
	// Output is set for Runtime, OutputProduced and Timeout (partial output).
	Output process.Output
	// After is set for Timeout.
	After time.Duration
	Err   error
}

func (e *RunError) Error() string {
	switch e.Kind {
	case Runtime, OutputProduced:
		return fmt.Sprintf("run failed (%s)", e.Kind)
	case Timeout:
		return fmt.Sprintf("run timed out after %s", e.After)
	case SuiteDoesNotExist:
		return "path is not a suite"
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Infrastructure reports whether the error is caused by the environment rather
// than by the behaviour of the compiled program.
func (e *RunError) Infrastructure() bool {
	switch e.Kind {
	case Runtime, OutputProduced, Timeout:
		return false
	default:
		return true
	}
}

// Options configures a run.
type Options struct {
	// Runtime is the name or path of the JavaScript runtime.
	Runtime string
	// Timeout bounds the wall-clock time of the run.
	Timeout time.Duration
}

// Run writes the harness next to the compiled artifact in outDir and runs it.
// The artifact must already exist as ArtifactName(level).
func Run(ctx context.Context, suiteDir, outDir string, level config.OptimizationLevel, opts Options, ready *suite.Ready) error {
	if !suite.IsSuite(suiteDir) {
		return &RunError{Kind: SuiteDoesNotExist}
	}
	runtimePath, err := process.LookPath(opts.Runtime)
	if err != nil {
		return &RunError{Kind: RuntimeNotFound, Err: err}
	}

	mainFile, err := writeFiles(outDir, level, ready)
	if err != nil {
		return err
	}

	cmd := process.Command{
		Path:    runtimePath,
		Args:    []string{"--unhandled-rejections=strict", mainFile},
		Dir:     outDir,
		Env:     map[string]string{"TZ": Timezone},
		Timeout: opts.Timeout,
	}
	logging.Debug("Runner", "Invoking runtime: %s", cmd)

	out, err := process.Run(ctx, cmd)
	if err != nil {
		var timeoutErr *process.TimeoutError
		if errors.As(err, &timeoutErr) {
			return &RunError{Kind: Timeout, After: timeoutErr.After, Output: timeoutErr.Output}
		}
		return &RunError{Kind: Process, Err: err}
	}
	return classify(out)
}

func classify(out process.Output) error {
	if !out.Success() {
		return &RunError{Kind: Runtime, Output: out}
	}
	if len(out.Stdout) > 0 {
		return &RunError{Kind: OutputProduced, Output: out}
	}
	if len(out.Stderr) > 0 && !slices.Contains(benignStderr, string(out.Stderr)) {
		return &RunError{Kind: OutputProduced, Output: out}
	}
	return nil
}

func writeFiles(outDir string, level config.OptimizationLevel, ready *suite.Ready) (string, error) {
	if err := os.WriteFile(filepath.Join(outDir, HarnessFile), harnessScript, 0644); err != nil {
		return "", &RunError{Kind: WritingHarness, Err: err}
	}
	if err := os.WriteFile(filepath.Join(outDir, ShimFile), xmlHTTPRequestShim, 0644); err != nil {
		return "", &RunError{Kind: WritingHarness, Err: err}
	}

	expected, err := json.MarshalIndent(ready, "", "  ")
	if err != nil {
		return "", &RunError{Kind: WritingExpectedOutput, Err: err}
	}
	if err := os.WriteFile(filepath.Join(outDir, ExpectedOutputFile), expected, 0644); err != nil {
		return "", &RunError{Kind: WritingExpectedOutput, Err: err}
	}

	mainFile, err := filepath.Abs(filepath.Join(outDir, MainFile))
	if err != nil {
		return "", &RunError{Kind: WritingHarness, Err: err}
	}
	if err := os.WriteFile(mainFile, []byte(mainScript(level)), 0644); err != nil {
		return "", &RunError{Kind: WritingHarness, Err: err}
	}
	return mainFile, nil
}

func mainScript(level config.OptimizationLevel) string {
	return fmt.Sprintf(`const harness = require('./%s');
global.XMLHttpRequest = require('./%s').XMLHttpRequest;
const generated = require('./%s');
const expectedOutput = require('./%s');

harness(generated, expectedOutput);
`, HarnessFile, ShimFile, ArtifactName(level), ExpectedOutputFile)
}
