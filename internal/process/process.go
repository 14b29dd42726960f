package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// DefaultWaitDelay bounds how long output is drained after a process has been killed.
const DefaultWaitDelay = time.Second

// Output is what a finished process left behind.
type Output struct {
	ExitCode int    `json:"exit-code"`
	Stdout   []byte `json:"-"`
	Stderr   []byte `json:"-"`
}

// Success reports whether the process exited with status zero.
func (o Output) Success() bool {
	return o.ExitCode == 0
}

// String renders the exit code and both streams for reports.
func (o Output) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, " = Exit code: %d =\n", o.ExitCode)
	fmt.Fprintf(&b, " = Std Out =\n%s\n", o.Stdout)
	fmt.Fprintf(&b, " = Std Err =\n%s", o.Stderr)
	return b.String()
}

// Command describes one invocation of an external program.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env is added on top of the inherited environment.
	Env map[string]string
	// Timeout kills the process once elapsed. Zero means no limit.
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// TimeoutError is returned by Run when Command.Timeout elapsed. Output holds
// whatever the process wrote before it was killed.
type TimeoutError struct {
	After  time.Duration
	Output Output
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("process killed after %s", e.After)
}

// Run starts the command with stdin closed and both output streams captured,
// and waits for it to exit. A non-zero exit status is reported in Output, not
// as an error; errors mean the process could not be run or was killed.
func Run(ctx context.Context, c Command) (Output, error) {
	// #nosec G204 -- the program and its arguments come from the run configuration.
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = environ(cmd, c.Env)
	cmd.Stdin = nil
	cmd.WaitDelay = DefaultWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Output{}, fmt.Errorf("failed to start %s: %w", c.Path, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		return collect(cmd, err, &stdout, &stderr)
	case <-timeout:
		_ = cmd.Process.Kill()
		<-done
		return Output{}, &TimeoutError{
			After: c.Timeout,
			Output: Output{
				ExitCode: -1,
				Stdout:   bytes.Clone(stdout.Bytes()),
				Stderr:   bytes.Clone(stderr.Bytes()),
			},
		}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return Output{}, ctx.Err()
	}
}

func collect(cmd *exec.Cmd, waitErr error, stdout, stderr *bytes.Buffer) (Output, error) {
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out, fmt.Errorf("waiting for %s: %w", cmd.Path, waitErr)
		}
	}
	out.ExitCode = cmd.ProcessState.ExitCode()
	return out, nil
}

func environ(cmd *exec.Cmd, extra map[string]string) []string {
	merged := cmd.Environ()
	if len(extra) == 0 {
		return merged
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+extra[k])
	}
	return merged
}
