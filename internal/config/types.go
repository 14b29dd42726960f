package config

import (
	"fmt"
	"strings"
	"time"
)

// OptimizationLevel is one of the compile modes a suite is built in.
type OptimizationLevel string

const (
	OptDebug    OptimizationLevel = "debug"
	OptDev      OptimizationLevel = "dev"
	OptOptimize OptimizationLevel = "optimize"
)

// AllOptimizationLevels lists every known level in display order.
var AllOptimizationLevels = []OptimizationLevel{OptDebug, OptDev, OptOptimize}

// ParseOptimizationLevel converts a level id into an OptimizationLevel.
func ParseOptimizationLevel(s string) (OptimizationLevel, error) {
	switch OptimizationLevel(strings.TrimSpace(s)) {
	case OptDebug:
		return OptDebug, nil
	case OptDev:
		return OptDev, nil
	case OptOptimize:
		return OptOptimize, nil
	default:
		return "", fmt.Errorf("invalid optimization level: %s", s)
	}
}

// Args returns the compiler flags selecting this level.
func (o OptimizationLevel) Args() []string {
	switch o {
	case OptDebug:
		return []string{"--debug"}
	case OptOptimize:
		return []string{"--optimize"}
	default:
		return nil
	}
}

// ID is the short identifier used in file names.
func (o OptimizationLevel) ID() string {
	return string(o)
}

// String is the human readable name of the level.
func (o OptimizationLevel) String() string {
	if o == OptDev {
		return "dev (default)"
	}
	return string(o)
}

// MarshalText implements encoding.TextMarshaler.
func (o OptimizationLevel) MarshalText() ([]byte, error) {
	return []byte(o), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown levels.
func (o *OptimizationLevel) UnmarshalText(text []byte) error {
	level, err := ParseOptimizationLevel(string(text))
	if err != nil {
		return err
	}
	*o = level
	return nil
}

// Duration is a time.Duration that (de)serializes as a Go duration string ("10s").
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	if parsed <= 0 {
		return fmt.Errorf("invalid duration %q: must be positive", string(text))
	}
	*d = Duration(parsed)
	return nil
}

// Config is the merged runtime configuration of a torture run.
// Unset fields fall back to the defaults in defaults.go.
type Config struct {
	// ElmCompilers are the compiler binaries every suite is built with.
	ElmCompilers []string `yaml:"elm-compilers,omitempty" json:"elm-compilers,omitempty"`
	// Node is the runtime executable used to run compiled suites.
	Node *string `yaml:"node,omitempty" json:"node,omitempty"`
	// OptLevels are the optimization levels every suite is built in.
	OptLevels []OptimizationLevel `yaml:"opt-levels,omitempty" json:"opt-levels,omitempty"`
	// CompilerMaxRetries bounds the compile attempts of one cell.
	CompilerMaxRetries *int `yaml:"compiler-max-retries,omitempty" json:"compiler-max-retries,omitempty"`
	// RunTimeout is the wall-clock limit of one run.
	RunTimeout *Duration `yaml:"run-timeout,omitempty" json:"run-timeout,omitempty"`
	// OutDir is where built files are placed; a temporary directory when empty.
	OutDir string `yaml:"out-dir,omitempty" json:"out-dir,omitempty"`
	// Jobs is the size of the cell worker pool.
	Jobs *int `yaml:"jobs,omitempty" json:"jobs,omitempty"`
}
