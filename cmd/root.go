package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"elmtorture/internal/app"
	"elmtorture/internal/config"
	"elmtorture/internal/matrix"
	"elmtorture/internal/reporting"
	"elmtorture/pkg/logging"
)

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code 0x%x", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

type rootOptions struct {
	suites     string
	configPath string
	showConfig string

	elmCompilers []string
	node         string
	optLevels    []string
	maxRetries   int
	runTimeout   time.Duration
	outDir       string
	jobs         int
	failFast     bool

	output    string
	reportDir string
	logLevel  string
	logFormat string
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd, _ := newRootCmdWithOptions()
	return cmd
}

func newRootCmdWithOptions() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "elm-torture --suites DIR",
		Short: "Compile and run Elm test suites across compilers and optimization levels",
		Long: `elm-torture compiles every suite with each configured compiler at each
optimization level, runs the result under node and checks the observed
behaviour against the suite's output.json.

Configuration is read from ~/.config/elm-torture/config.yaml, then
./.elm-torture/config.yaml, then --config, then the flags below. A .env file
in the working directory is loaded first.

The exit code is the bitwise OR of:
  0x21  unexpected compile failure
  0x22  unexpected run failure
  0x24  an expected failure did not happen
  0x28  infrastructure error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.suites, "suites", "", "Suite directory, or a directory containing suites")
	f.StringVar(&opts.configPath, "config", "", "Config file layered over the user and project config")
	f.StringVar(&opts.showConfig, "show-config", "", "Write the merged config to `FILE` (JSON if it ends in .json) and exit")
	f.StringSliceVar(&opts.elmCompilers, "elm-compilers", nil, "Compilers to test with (default [elm])")
	f.StringVar(&opts.node, "node", "", "JavaScript runtime (default node)")
	f.StringSliceVarP(&opts.optLevels, "opt-levels", "o", nil, "Optimization levels: debug, dev, optimize (default [dev])")
	f.IntVar(&opts.maxRetries, "compiler-max-retries", config.DefaultCompilerMaxRetries, "Compile attempts per cell")
	f.DurationVar(&opts.runTimeout, "run-timeout", config.DefaultRunTimeout, "Wall clock limit of each run")
	f.StringVar(&opts.outDir, "out-dir", "", "Directory for build artifacts (default: a temporary directory)")
	f.IntVar(&opts.jobs, "jobs", 0, "Cells evaluated in parallel (default: number of CPUs)")
	f.BoolVar(&opts.failFast, "fail-fast", false, "Do not start new suites after a failure")
	f.StringVar(&opts.output, "output", string(reporting.FormatText), "Output format: text, quiet or json")
	f.StringVar(&opts.reportDir, "report", "", "Write a detailed JSON report into `DIR`")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", string(logging.FormatText), "Log format: text or json")

	cmd.AddCommand(newVersionCmd())
	return cmd, opts
}

func runRoot(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		return err
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return &ExitError{Code: matrix.ExitInfrastructure, Err: err}
	}
	if code := application.Run(cmd.Context()); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// buildConfig turns the flags into an application configuration. Only flags
// that were given override the config files.
func buildConfig(cmd *cobra.Command, opts *rootOptions) (*app.Config, error) {
	if opts.suites == "" && opts.showConfig == "" {
		return nil, errors.New("required flag \"suites\" not set")
	}

	cfg := app.NewConfig(opts.suites)
	cfg.ConfigPath = opts.configPath
	cfg.ShowConfig = opts.showConfig
	cfg.FailFast = opts.failFast
	cfg.ReportDir = opts.reportDir
	cfg.Stdout = cmd.OutOrStdout()
	cfg.Stderr = cmd.ErrOrStderr()

	var err error
	if cfg.Output, err = reporting.ParseFormat(opts.output); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = logging.ParseLevel(opts.logLevel); err != nil {
		return nil, err
	}
	switch format := logging.Format(opts.logFormat); format {
	case logging.FormatText, logging.FormatJSON:
		cfg.LogFormat = format
	default:
		return nil, fmt.Errorf("unknown log format %q (expected text or json)", opts.logFormat)
	}

	flags := cmd.Flags()
	o := &cfg.Overrides
	if flags.Changed("elm-compilers") {
		o.ElmCompilers = opts.elmCompilers
	}
	if flags.Changed("node") {
		o.Node = &opts.node
	}
	if flags.Changed("opt-levels") {
		for _, s := range opts.optLevels {
			level, err := config.ParseOptimizationLevel(s)
			if err != nil {
				return nil, err
			}
			o.OptLevels = append(o.OptLevels, level)
		}
	}
	if flags.Changed("compiler-max-retries") {
		o.CompilerMaxRetries = &opts.maxRetries
	}
	if flags.Changed("run-timeout") {
		if opts.runTimeout <= 0 {
			return nil, fmt.Errorf("--run-timeout must be positive, got %s", opts.runTimeout)
		}
		d := config.Duration(opts.runTimeout)
		o.RunTimeout = &d
	}
	if flags.Changed("out-dir") {
		o.OutDir = opts.outDir
	}
	if flags.Changed("jobs") {
		o.Jobs = &opts.jobs
	}
	return cfg, nil
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command and exits with its exit code.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "elm-torture version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.Err)
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
