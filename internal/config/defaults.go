package config

import (
	"runtime"
	"time"
)

const (
	DefaultCompiler           = "elm"
	DefaultNode               = "node"
	DefaultCompilerMaxRetries = 1
	DefaultRunTimeout         = 10 * time.Second
)

// DefaultJobs is the worker pool size when none is configured.
func DefaultJobs() int {
	return runtime.NumCPU()
}

// Compilers returns the configured compiler names, deduplicated, or the default compiler.
func (c Config) Compilers() []string {
	if len(c.ElmCompilers) == 0 {
		return []string{DefaultCompiler}
	}
	seen := make(map[string]bool, len(c.ElmCompilers))
	var out []string
	for _, name := range c.ElmCompilers {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return []string{DefaultCompiler}
	}
	return out
}

// NodeName returns the runtime executable name.
func (c Config) NodeName() string {
	if c.Node == nil || *c.Node == "" {
		return DefaultNode
	}
	return *c.Node
}

// Levels returns the configured optimization levels, deduplicated, or dev.
func (c Config) Levels() []OptimizationLevel {
	if len(c.OptLevels) == 0 {
		return []OptimizationLevel{OptDev}
	}
	seen := make(map[OptimizationLevel]bool, len(c.OptLevels))
	var out []OptimizationLevel
	for _, level := range c.OptLevels {
		if seen[level] {
			continue
		}
		seen[level] = true
		out = append(out, level)
	}
	return out
}

// MaxRetries returns the compile attempt bound (at least 1).
func (c Config) MaxRetries() int {
	if c.CompilerMaxRetries == nil || *c.CompilerMaxRetries < 1 {
		return DefaultCompilerMaxRetries
	}
	return *c.CompilerMaxRetries
}

// Timeout returns the run timeout.
func (c Config) Timeout() time.Duration {
	if c.RunTimeout == nil || *c.RunTimeout <= 0 {
		return DefaultRunTimeout
	}
	return time.Duration(*c.RunTimeout)
}

// Workers returns the worker pool size.
func (c Config) Workers() int {
	if c.Jobs == nil || *c.Jobs < 1 {
		return DefaultJobs()
	}
	return *c.Jobs
}
