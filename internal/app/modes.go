package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"elmtorture/internal/config"
	"elmtorture/internal/matrix"
	"elmtorture/internal/mockserver"
	"elmtorture/internal/reporting"
	"elmtorture/internal/suite"
	"elmtorture/internal/toolchain"
	"elmtorture/pkg/logging"
)

// runSuites discovers the suites, resolves the compilers and evaluates the matrix.
func runSuites(ctx context.Context, cfg *Config, settings config.Config, reporter reporting.Reporter) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	suites, err := suite.Find(cfg.Suites)
	if err != nil {
		logging.Error("CLI", err, "Cannot run suites in %s", cfg.Suites)
		return matrix.ExitInfrastructure
	}
	suites = suite.Dedupe(suites)
	if len(suites) == 0 {
		logging.Warn("CLI", "No suites found in %s", cfg.Suites)
	}

	platform, err := suite.CurrentPlatform()
	if err != nil {
		logging.Error("CLI", err, "Unsupported platform")
		return matrix.ExitInfrastructure
	}

	compilers, err := toolchain.ResolveAll(ctx, settings.Compilers())
	if err != nil {
		logging.Error("CLI", err, "Could not resolve the compiler")
		return matrix.ExitInfrastructure
	}

	servers := mockserver.NewPool()
	defer servers.Close()

	runner := matrix.NewRunner(matrix.Options{
		Compilers:  compilers,
		OptLevels:  settings.Levels(),
		Runtime:    settings.NodeName(),
		MaxRetries: settings.MaxRetries(),
		RunTimeout: settings.Timeout(),
		OutDir:     settings.OutDir,
		Jobs:       settings.Workers(),
		FailFast:   cfg.FailFast,
		Platform:   platform,
	}, servers, reporter)

	runID := uuid.New()
	logging.Debug("CLI", "Starting run %s", runID)
	started := time.Now()
	reporter.Started(suites)

	batch, err := runner.Run(ctx, suites)
	if err != nil {
		logging.Error("CLI", err, "Could not run suites")
		return matrix.ExitInfrastructure
	}
	reporter.Summary(batch)

	code := batch.ExitCode()
	if cfg.ReportDir != "" {
		report := reporting.NewReport(runID, started, time.Now(), runner.Keys(), batch)
		path, err := reporting.WriteReport(cfg.ReportDir, report)
		if err != nil {
			logging.Error("CLI", err, "Could not write report")
			return code | matrix.ExitInfrastructure
		}
		logging.Info("CLI", "Wrote report to %s", path)
	}
	return code
}
