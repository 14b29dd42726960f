package matrix

import (
	"encoding/json"
	"errors"
	"fmt"

	"elmtorture/internal/config"
	"elmtorture/internal/harness"
	"elmtorture/internal/process"
	"elmtorture/internal/toolchain"
)

// Exit codes of non-allowed outcomes. A batch exits with the bitwise OR of
// the codes of all its cells.
const (
	ExitCompileFailure             = 0x21
	ExitRunFailure                 = 0x22
	ExitExpectedFailureNotObserved = 0x24
	ExitInfrastructure             = 0x28
)

// Infrastructure errors that prevent a cell from being evaluated at all.
var (
	ErrSuiteNotExist = errors.New("suite does not exist")
	ErrSuiteNotDir   = errors.New("suite is not a directory")
	ErrSuiteNotValid = errors.New("suite is not valid (missing elm.json)")
	ErrOutDirNotDir  = errors.New("suite output path exists but is not a directory")
	ErrServerSetup   = errors.New("could not set up mock server")
)

// Kind is the verdict of one matrix cell.
type Kind int

const (
	Success Kind = iota
	CompileFailure
	RunFailure
	ExpectedCompileFailureNotObserved
	ExpectedRunFailureNotObserved
	Infrastructure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case CompileFailure:
		return "compile failure"
	case RunFailure:
		return "run failure"
	case ExpectedCompileFailureNotObserved:
		return "expected compile failure not observed"
	case ExpectedRunFailureNotObserved:
		return "expected run failure not observed"
	default:
		return "infrastructure error"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Key identifies one cell of a suite's matrix.
type Key struct {
	Compiler *toolchain.Handle
	OptLevel config.OptimizationLevel
}

func (k Key) String() string {
	return fmt.Sprintf("%s (%s)", k.Compiler, k.OptLevel)
}

// Outcome is the result of one matrix cell.
type Outcome struct {
	Kind Kind
	// Allowed is set on compile and run failures the declaration expects.
	Allowed bool
	// Attempts is the number of failed compile attempts.
	Attempts int
	// RunSkipped is set on a success whose run was skipped by skip-run-if.
	RunSkipped bool
	// Err is the stage error behind a failure.
	Err error
	// WorkDir holds the cell's build and harness files.
	WorkDir string
}

// Failed reports whether the outcome counts against the batch.
func (o Outcome) Failed() bool {
	switch o.Kind {
	case Success:
		return false
	case CompileFailure, RunFailure:
		return !o.Allowed
	default:
		return true
	}
}

// ExitCode is the bit this outcome contributes to the process exit code.
func (o Outcome) ExitCode() int {
	if !o.Failed() {
		return 0
	}
	switch o.Kind {
	case CompileFailure:
		return ExitCompileFailure
	case RunFailure:
		return ExitRunFailure
	case ExpectedCompileFailureNotObserved, ExpectedRunFailureNotObserved:
		return ExitExpectedFailureNotObserved
	default:
		return ExitInfrastructure
	}
}

// ProcessOutput returns the compiler or runtime output behind the outcome, if any.
func (o Outcome) ProcessOutput() (process.Output, bool) {
	var compileErr *toolchain.CompileError
	if errors.As(o.Err, &compileErr) && !compileErr.Infrastructure() {
		return compileErr.Output, true
	}
	var runErr *harness.RunError
	if errors.As(o.Err, &runErr) && !runErr.Infrastructure() {
		return runErr.Output, true
	}
	return process.Output{}, false
}

// MarshalJSON implements json.Marshaler.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type outputJSON struct {
		ExitCode int    `json:"exit-code"`
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
	}
	type outcomeJSON struct {
		Kind       Kind        `json:"kind"`
		Allowed    bool        `json:"allowed,omitempty"`
		Attempts   int         `json:"attempts"`
		RunSkipped bool        `json:"run-skipped,omitempty"`
		ExitCode   int         `json:"exit-code"`
		Error      string      `json:"error,omitempty"`
		Output     *outputJSON `json:"output,omitempty"`
		WorkDir    string      `json:"work-dir,omitempty"`
	}

	out := outcomeJSON{
		Kind:       o.Kind,
		Allowed:    o.Allowed,
		Attempts:   o.Attempts,
		RunSkipped: o.RunSkipped,
		ExitCode:   o.ExitCode(),
		WorkDir:    o.WorkDir,
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	if po, ok := o.ProcessOutput(); ok {
		out.Output = &outputJSON{ExitCode: po.ExitCode, Stdout: string(po.Stdout), Stderr: string(po.Stderr)}
	}
	return json.Marshal(out)
}

// SuiteResult holds the outcomes of every cell of one suite.
type SuiteResult struct {
	Suite string
	// OutDir is the suite's output directory. It only exists after the run when Preserved is set.
	OutDir    string
	Preserved bool
	// Keys lists the cells in matrix order.
	Keys  []Key
	Cells map[Key]Outcome
}

// Failed reports whether any cell failed.
func (r *SuiteResult) Failed() bool {
	for _, o := range r.Cells {
		if o.Failed() {
			return true
		}
	}
	return false
}

// ExitCode ORs the exit codes of all cells.
func (r *SuiteResult) ExitCode() int {
	code := 0
	for _, o := range r.Cells {
		code |= o.ExitCode()
	}
	return code
}

// BatchResult is the aggregate of a whole run.
type BatchResult struct {
	Suites []*SuiteResult
	// Skipped lists suites not started because of fail-fast.
	Skipped []string
	// TempDir is the temporary output directory, if one was used and kept.
	TempDir string
}

// ExitCode ORs the exit codes of all cells of all suites.
func (b *BatchResult) ExitCode() int {
	code := 0
	for _, s := range b.Suites {
		code |= s.ExitCode()
	}
	return code
}
