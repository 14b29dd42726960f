package app

import (
	"context"
	"fmt"

	"elmtorture/internal/color"
	"elmtorture/internal/config"
	"elmtorture/internal/matrix"
	"elmtorture/internal/reporting"
	"elmtorture/pkg/logging"
)

// Application runs one batch of suites.
type Application struct {
	config   *Config
	settings config.Config
	reporter reporting.Reporter
}

// NewApplication loads the environment and the layered configuration.
func NewApplication(cfg *Config) (*Application, error) {
	logging.InitForCLI(cfg.LogLevel, cfg.LogFormat, cfg.Stderr)

	if err := config.LoadEnvFile(); err != nil {
		logging.Warn("Bootstrap", "Ignoring .env file: %v", err)
	}

	settings, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	settings = settings.OverwriteWith(cfg.Overrides)

	reporter, err := reporting.New(cfg.Output, cfg.Stdout)
	if err != nil {
		return nil, err
	}
	if cfg.Output != reporting.FormatText {
		color.Disable()
	}

	return &Application{
		config:   cfg,
		settings: settings,
		reporter: reporter,
	}, nil
}

// Settings returns the merged configuration.
func (a *Application) Settings() config.Config {
	return a.settings
}

// Run executes the application and returns the process exit code.
func (a *Application) Run(ctx context.Context) int {
	if a.config.ShowConfig != "" {
		return a.showConfig()
	}
	if a.config.Suites == "" {
		logging.Error("CLI", nil, "No suites given")
		return matrix.ExitInfrastructure
	}
	return runSuites(ctx, a.config, a.settings, a.reporter)
}

func (a *Application) showConfig() int {
	if err := config.WriteConfig(a.settings, a.config.ShowConfig); err != nil {
		logging.Error("CLI", err, "Could not write configuration")
		return matrix.ExitInfrastructure
	}
	logging.Info("CLI", "Wrote configuration to %s", a.config.ShowConfig)
	return 0
}
