package app

import (
	"io"
	"os"

	"elmtorture/internal/config"
	"elmtorture/internal/reporting"
	"elmtorture/pkg/logging"
)

// Config holds everything the command line decided.
type Config struct {
	// Suites is the suite directory, or a directory containing suites.
	Suites string

	// ConfigPath is an explicit config file layered over the user and project files.
	ConfigPath string
	// Overrides are the command line flags, layered over every config file.
	Overrides config.Config

	// ShowConfig writes the merged configuration to this path instead of running suites.
	ShowConfig string

	FailFast bool

	Output    reporting.Format
	ReportDir string

	LogLevel  logging.LogLevel
	LogFormat logging.Format

	Stdout io.Writer
	Stderr io.Writer
}

// NewConfig creates a configuration with the default output settings.
func NewConfig(suites string) *Config {
	return &Config{
		Suites:    suites,
		Output:    reporting.FormatText,
		LogLevel:  logging.LevelInfo,
		LogFormat: logging.FormatText,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}
