package matrix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"elmtorture/internal/config"
	"elmtorture/internal/harness"
	"elmtorture/internal/mockserver"
	"elmtorture/internal/suite"
	"elmtorture/internal/toolchain"
	"elmtorture/pkg/logging"
)

// serverAddr asks the OS for an unused port on the loopback interface.
const serverAddr = "localhost:0"

// Reporter receives progress while a batch runs. Methods may be called from
// several goroutines at once.
type Reporter interface {
	SuiteStarted(suite string, keys []Key)
	CellFinished(suite string, key Key, outcome Outcome)
	SuiteFinished(result *SuiteResult)
	SuiteSkipped(suite string)
}

// NopReporter ignores all progress.
type NopReporter struct{}

func (NopReporter) SuiteStarted(string, []Key)        {}
func (NopReporter) CellFinished(string, Key, Outcome) {}
func (NopReporter) SuiteFinished(*SuiteResult)        {}
func (NopReporter) SuiteSkipped(string)               {}

// Options configures a Runner.
type Options struct {
	Compilers  []*toolchain.Handle
	OptLevels  []config.OptimizationLevel
	Runtime    string
	MaxRetries int
	RunTimeout time.Duration
	// OutDir receives one directory per suite. A temporary directory is used when empty.
	OutDir   string
	Jobs     int
	FailFast bool
	Platform suite.Platform
}

// Runner evaluates the compiler × optimization level matrix of suites.
type Runner struct {
	opts     Options
	keys     []Key
	cellDirs map[Key]string

	compiler *toolchain.Compiler
	servers  *mockserver.Pool
	reporter Reporter
	failed   *FailureToken
	tmp      *tempDir
}

// NewRunner creates a Runner. Mock servers are started from servers; the
// caller owns the pool.
func NewRunner(opts Options, servers *mockserver.Pool, reporter Reporter) *Runner {
	if opts.Jobs < 1 {
		opts.Jobs = config.DefaultJobs()
	}
	if reporter == nil {
		reporter = NopReporter{}
	}

	r := &Runner{
		opts:     opts,
		cellDirs: make(map[Key]string),
		compiler: toolchain.NewCompiler(),
		servers:  servers,
		reporter: reporter,
		failed:   &FailureToken{},
		tmp:      &tempDir{},
	}

	used := make(map[string]int)
	for _, h := range opts.Compilers {
		for _, level := range opts.OptLevels {
			key := Key{Compiler: h, OptLevel: level}
			r.keys = append(r.keys, key)
			r.cellDirs[key] = uniqueName(used, sanitize(h.Name)+"-"+level.ID())
		}
	}
	return r
}

// Keys returns the matrix cells every suite is evaluated in.
func (r *Runner) Keys() []Key {
	return r.keys
}

// FailureToken exposes the shared failure flag.
func (r *Runner) FailureToken() *FailureToken {
	return r.failed
}

type suiteRun struct {
	result    *SuiteResult
	mu        sync.Mutex
	remaining atomic.Int32

	startOnce sync.Once
	skipped   bool
}

// start decides, when the first cell of the suite gets a worker, whether the
// suite runs at all.
func (r *Runner) start(run *suiteRun) bool {
	run.startOnce.Do(func() {
		run.skipped = r.opts.FailFast && r.failed.Failed()
		if run.skipped {
			logging.Info("Matrix", "Skipping %s: a previous suite failed", run.result.Suite)
			return
		}
		r.reporter.SuiteStarted(run.result.Suite, r.keys)
	})
	return !run.skipped
}

// Run evaluates every suite. Cells run concurrently on a pool of Options.Jobs
// workers. With FailFast, suites are no longer started once a cell has
// failed; cells already started always finish.
func (r *Runner) Run(ctx context.Context, suites []string) (*BatchResult, error) {
	base, err := r.baseDir()
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Jobs)

	var runs []*suiteRun
	usedNames := make(map[string]int)
	for _, suitePath := range suites {
		run := &suiteRun{result: &SuiteResult{
			Suite:  suitePath,
			OutDir: filepath.Join(base, uniqueName(usedNames, suiteDirName(suitePath))),
			Keys:   r.keys,
			Cells:  make(map[Key]Outcome, len(r.keys)),
		}}
		runs = append(runs, run)

		if r.opts.FailFast && r.failed.Failed() {
			run.startOnce.Do(func() {
				logging.Info("Matrix", "Skipping %s: a previous suite failed", suitePath)
				run.skipped = true
			})
			continue
		}
		if len(r.keys) == 0 {
			r.start(run)
			r.finishSuite(run)
			continue
		}

		run.remaining.Store(int32(len(r.keys)))
		for _, key := range r.keys {
			g.Go(func() error {
				if !r.start(run) {
					return nil
				}
				outcome := r.evaluate(gctx, run.result, key)
				r.recordCell(run, key, outcome)
				return nil
			})
		}
	}
	_ = g.Wait()

	batch := &BatchResult{}
	for _, run := range runs {
		if run.skipped {
			batch.Skipped = append(batch.Skipped, run.result.Suite)
			r.reporter.SuiteSkipped(run.result.Suite)
			continue
		}
		batch.Suites = append(batch.Suites, run.result)
	}
	batch.TempDir = r.tmp.cleanup()
	return batch, nil
}

func (r *Runner) baseDir() (string, error) {
	if r.opts.OutDir == "" {
		dir, err := r.tmp.get()
		if err != nil {
			return "", fmt.Errorf("creating temporary directory: %w", err)
		}
		return dir, nil
	}
	if err := os.MkdirAll(r.opts.OutDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return r.opts.OutDir, nil
}

func (r *Runner) recordCell(run *suiteRun, key Key, outcome Outcome) {
	if outcome.Failed() {
		r.failed.Set()
	}
	run.mu.Lock()
	run.result.Cells[key] = outcome
	run.mu.Unlock()
	r.reporter.CellFinished(run.result.Suite, key, outcome)

	if run.remaining.Add(-1) == 0 {
		r.finishSuite(run)
	}
}

// finishSuite applies the retention policy once every cell of the suite is done.
func (r *Runner) finishSuite(run *suiteRun) {
	result := run.result
	preserve := false
	for _, o := range result.Cells {
		if o.Kind == RunFailure && !o.Allowed {
			preserve = true
			break
		}
	}

	if preserve {
		result.Preserved = true
		if r.opts.OutDir == "" {
			r.tmp.preserve()
		}
		logging.Info("Matrix", "Keeping %s for inspection", result.OutDir)
	} else if err := os.RemoveAll(result.OutDir); err != nil {
		logging.Warn("Matrix", "Could not remove %s: %v", result.OutDir, err)
	}
	r.reporter.SuiteFinished(result)
}

// evaluate runs one cell: declaration, mock server, compile, run.
func (r *Runner) evaluate(ctx context.Context, result *SuiteResult, key Key) Outcome {
	suitePath := result.Suite
	workDir := filepath.Join(result.OutDir, r.cellDirs[key])
	infra := func(err error) Outcome {
		logging.Error("Matrix", err, "Could not evaluate %s with %s", suitePath, key)
		return Outcome{Kind: Infrastructure, Err: err, WorkDir: workDir}
	}

	info, err := os.Stat(suitePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return infra(ErrSuiteNotExist)
	case err != nil:
		return infra(err)
	case !info.IsDir():
		return infra(ErrSuiteNotDir)
	case !suite.IsSuite(suitePath):
		return infra(ErrSuiteNotValid)
	}

	raw, err := suite.LoadDeclaration(suitePath)
	if err != nil {
		return infra(err)
	}

	var server *suite.ServerInfo
	if raw.NeedsServer() {
		session, err := r.servers.Start(mockserver.HTTP, serverAddr, raw.Network)
		if err != nil {
			return infra(fmt.Errorf("%w: %w", ErrServerSetup, err))
		}
		defer func() {
			logging.Debug("Matrix", "%s with %s consumed %d of %d scripted requests", suitePath, key, session.Served(), len(raw.Network))
			session.Close()
		}()
		server = session.Info()
	}
	ready, err := suite.MakeReady(raw, server)
	if err != nil {
		return infra(err)
	}

	if err := makeWorkDir(workDir); err != nil {
		return infra(err)
	}

	compileAllowed := ready.CompileFailsIf().IsMet(suite.CompileFacts{
		OptLevel: key.OptLevel,
		Platform: r.opts.Platform,
	})
	artifact := filepath.Join(workDir, harness.ArtifactName(key.OptLevel))
	attempts, err := r.compiler.Compile(ctx, suitePath, artifact, key.OptLevel, key.Compiler, r.opts.MaxRetries)
	if err != nil {
		var compileErr *toolchain.CompileError
		if errors.As(err, &compileErr) && compileErr.Infrastructure() {
			o := infra(err)
			o.Attempts = attempts
			return o
		}
		logging.Debug("Matrix", "Compile failure of %s with %s (allowed: %t)", suitePath, key, compileAllowed)
		return Outcome{Kind: CompileFailure, Allowed: compileAllowed, Attempts: attempts, Err: err, WorkDir: workDir}
	}
	if compileAllowed {
		return Outcome{Kind: ExpectedCompileFailureNotObserved, Attempts: attempts, WorkDir: workDir}
	}

	runFacts := suite.RunFacts{
		OptLevel:      key.OptLevel,
		StdlibVariant: key.Compiler.Variant,
		Platform:      r.opts.Platform,
	}
	if ready.SkipRunIf().IsMet(runFacts) {
		return Outcome{Kind: Success, Attempts: attempts, RunSkipped: true, WorkDir: workDir}
	}
	runRequired := ready.RunFailsIf().IsMet(runFacts)

	err = harness.Run(ctx, suitePath, workDir, key.OptLevel, harness.Options{
		Runtime: r.opts.Runtime,
		Timeout: r.opts.RunTimeout,
	}, ready)
	if err != nil {
		var runErr *harness.RunError
		if errors.As(err, &runErr) && runErr.Infrastructure() {
			o := infra(err)
			o.Attempts = attempts
			return o
		}
		logging.Debug("Matrix", "Run failure of %s with %s (allowed: %t)", suitePath, key, runRequired)
		return Outcome{Kind: RunFailure, Allowed: runRequired, Attempts: attempts, Err: err, WorkDir: workDir}
	}
	if runRequired {
		return Outcome{Kind: ExpectedRunFailureNotObserved, Attempts: attempts, WorkDir: workDir}
	}
	return Outcome{Kind: Success, Attempts: attempts, WorkDir: workDir}
}

func makeWorkDir(dir string) error {
	parent := filepath.Dir(dir)
	if info, err := os.Stat(parent); err == nil && !info.IsDir() {
		return fmt.Errorf("%s: %w", parent, ErrOutDirNotDir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitize(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

func suiteDirName(suitePath string) string {
	abs, err := filepath.Abs(suitePath)
	if err != nil {
		abs = suitePath
	}
	return sanitize(filepath.Base(abs))
}

// uniqueName returns name, or name-N if it was already handed out.
func uniqueName(used map[string]int, name string) string {
	candidate := name
	for i := 2; used[candidate] > 0; i++ {
		candidate = name + "-" + strconv.Itoa(i)
	}
	used[candidate]++
	return candidate
}
