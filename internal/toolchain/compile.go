package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"elmtorture/internal/config"
	"elmtorture/internal/process"
	"elmtorture/internal/suite"
	"elmtorture/pkg/logging"
)

// CompileErrorKind classifies CompileError.
type CompileErrorKind int

const (
	SuiteDoesNotExist CompileErrorKind = iota
	ReadingTargets
	CacheCleanupFailed
	Process
	CompilerFailed
	CompilerWarnings
)

func (k CompileErrorKind) String() string {
	switch k {
	case SuiteDoesNotExist:
		return "suite does not exist"
	case ReadingTargets:
		return "reading targets"
	case CacheCleanupFailed:
		return "deleting build cache"
	case Process:
		return "running compiler"
	case CompilerFailed:
		return "compiler failed"
	default:
		return "compiler wrote to stderr"
	}
}

// CompileError is returned by Compiler.Compile.
type CompileError struct {
	Kind CompileErrorKind
	// Output is set for CompilerFailed and CompilerWarnings.
	Output process.Output
	Err    error
}

func (e *CompileError) Error() string {
	switch e.Kind {
	case CompilerFailed, CompilerWarnings:
		return fmt.Sprintf("compilation failed (%s)", e.Kind)
	case SuiteDoesNotExist:
		return "path is not a suite"
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Infrastructure reports whether the error is caused by the environment rather
// than by the compiler's verdict on the suite.
func (e *CompileError) Infrastructure() bool {
	return e.Kind != CompilerFailed && e.Kind != CompilerWarnings
}

// Compiler runs compile jobs one at a time, no matter how many goroutines call Compile.
type Compiler struct {
	mu sync.Mutex
}

// NewCompiler returns a Compiler with its own lock. A process should use a single one.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile builds the suite in suiteDir into outFile with h at level.
//
// It tries up to maxRetries times (at least once) and stops at the first
// success. The returned count is the number of failed attempts. The build
// cache is removed before every attempt and the lock is held for the whole
// attempt.
func (c *Compiler) Compile(ctx context.Context, suiteDir, outFile string, level config.OptimizationLevel, h *Handle, maxRetries int) (int, error) {
	if !suite.IsSuite(suiteDir) {
		return 0, &CompileError{Kind: SuiteDoesNotExist}
	}
	roots, err := suite.RootFiles(suiteDir)
	if err != nil {
		return 0, &CompileError{Kind: ReadingTargets, Err: err}
	}
	outFile, err = filepath.Abs(outFile)
	if err != nil {
		return 0, &CompileError{Kind: Process, Err: err}
	}

	args := append([]string{"make"}, roots...)
	args = append(args, level.Args()...)
	args = append(args, "--output", outFile)
	cmd := process.Command{
		Path: h.Path,
		Args: args,
		Dir:  suiteDir,
		Env:  process.Inherit(process.ElmHomeEnv),
	}
	logging.Debug("Compiler", "Invoking compiler: %s", cmd)

	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr *CompileError
	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = c.attempt(ctx, suiteDir, cmd)
		if lastErr == nil {
			return attempt, nil
		}
		if lastErr.Infrastructure() {
			return attempt + 1, lastErr
		}
		logging.Debug("Compiler", "Compile attempt %d/%d of %s with %s failed", attempt+1, maxRetries, suiteDir, h)
	}
	return maxRetries, lastErr
}

func (c *Compiler) attempt(ctx context.Context, suiteDir string, cmd process.Command) *CompileError {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.RemoveAll(filepath.Join(suiteDir, suite.BuildCacheDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &CompileError{Kind: CacheCleanupFailed, Err: err}
	}

	out, err := process.Run(ctx, cmd)
	if err != nil {
		return &CompileError{Kind: Process, Err: err}
	}
	if !out.Success() {
		return &CompileError{Kind: CompilerFailed, Output: out}
	}
	if len(out.Stderr) > 0 {
		return &CompileError{Kind: CompilerWarnings, Output: out}
	}
	return nil
}
