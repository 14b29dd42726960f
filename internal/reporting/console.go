package reporting

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"

	"elmtorture/internal/color"
	"elmtorture/internal/harness"
	"elmtorture/internal/matrix"
)

const indent = "    "

// ConsoleReporter prints a human readable report.
type ConsoleReporter struct {
	mu    sync.Mutex
	w     io.Writer
	quiet bool
}

// NewConsoleReporter creates a ConsoleReporter. A quiet reporter only prints
// failing cells and a one-line summary.
func NewConsoleReporter(w io.Writer, quiet bool) *ConsoleReporter {
	return &ConsoleReporter{w: w, quiet: quiet}
}

func (c *ConsoleReporter) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// Started lists the suites about to run.
func (c *ConsoleReporter) Started(suites []string) {
	if c.quiet {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Running the following %d SSCCE%s:\n", len(suites), plural(len(suites)))
	for _, s := range suites {
		b.WriteString(indent + s + "\n")
	}
	c.printf("%s\n", b.String())
}

func (c *ConsoleReporter) SuiteStarted(suite string, keys []matrix.Key) {
	if c.quiet {
		return
	}
	c.printf("%s %s (%d cell%s)\n", color.MutedStyle.Render("Testing"), suite, len(keys), plural(len(keys)))
}

// CellFinished prints a progress line, and the details of a failing cell.
func (c *ConsoleReporter) CellFinished(suite string, key matrix.Key, outcome matrix.Outcome) {
	var b strings.Builder
	if !c.quiet {
		fmt.Fprintf(&b, "%s %s with %s\n", styleFor(outcome).Render(Label(outcome)), suite, key)
	}
	if outcome.Failed() {
		writeFailure(&b, suite, key, outcome)
	}
	if b.Len() > 0 {
		c.printf("%s", b.String())
	}
}

func (c *ConsoleReporter) SuiteFinished(result *matrix.SuiteResult) {
	if result.Preserved {
		c.printf("Output of %s kept in %s\n", result.Suite, result.OutDir)
	}
}

func (c *ConsoleReporter) SuiteSkipped(suite string) {
	if c.quiet {
		return
	}
	c.printf("%s %s\n", color.MutedStyle.Render("Skipped"), suite)
}

// Summary prints the results of every cell grouped by compiler and
// optimization level, followed by a table of totals.
func (c *ConsoleReporter) Summary(batch *matrix.BatchResult) {
	var b strings.Builder
	failed := 0
	for _, s := range batch.Suites {
		if s.Failed() {
			failed++
		}
	}

	if !c.quiet {
		fmt.Fprintf(&b, "\nelm-torture has run the following %d SSCCE%s:\n", len(batch.Suites), plural(len(batch.Suites)))
		writeGroups(&b, batch)
		writeTotals(&b, batch)
		if len(batch.Skipped) > 0 {
			fmt.Fprintf(&b, "\nSkipped after a failure (--fail-fast):\n")
			for _, s := range batch.Skipped {
				b.WriteString(indent + s + "\n")
			}
		}
		if batch.TempDir != "" {
			fmt.Fprintf(&b, "\nTemporary directory kept at %s\n", batch.TempDir)
		}
	}

	line := fmt.Sprintf("%d of %d suite%s failed", failed, len(batch.Suites), plural(len(batch.Suites)))
	if len(batch.Skipped) > 0 {
		line += fmt.Sprintf(", %d skipped", len(batch.Skipped))
	}
	if code := batch.ExitCode(); code != 0 {
		fmt.Fprintf(&b, "%s (exit code 0x%x)\n", color.FailureStyle.Render(line), code)
	} else {
		fmt.Fprintf(&b, "%s\n", color.SuccessStyle.Render(line))
	}
	c.printf("%s", b.String())
}

func writeGroups(b *strings.Builder, batch *matrix.BatchResult) {
	width := 0
	for _, s := range batch.Suites {
		width = max(width, runewidth.StringWidth(s.Suite))
	}
	for _, key := range keysOf(batch) {
		fmt.Fprintf(b, "%sCompiling with %s in %s optimisation mode\n", indent,
			color.HighlightStyle.Render(key.Compiler.String()),
			color.HighlightStyle.Render(key.OptLevel.String()))
		for _, s := range batch.Suites {
			o, ok := s.Cells[key]
			if !ok {
				continue
			}
			fmt.Fprintf(b, "%s%s  %s\n", indent+indent, runewidth.FillRight(s.Suite, width), styleFor(o).Render(Label(o)))
		}
	}
}

type totals struct {
	success, allowed, unexpected, notObserved, infrastructure int
}

func writeTotals(b *strings.Builder, batch *matrix.BatchResult) {
	keys := keysOf(batch)
	if len(keys) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(b)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		color.HeaderColors.Sprint("COMPILER"),
		color.HeaderColors.Sprint("OPT LEVEL"),
		color.HeaderColors.Sprint("SUCCESS"),
		color.HeaderColors.Sprint("ALLOWED"),
		color.HeaderColors.Sprint("FAILED"),
		color.HeaderColors.Sprint("NOT OBSERVED"),
		color.HeaderColors.Sprint("INFRASTRUCTURE"),
	})
	for _, key := range keys {
		var n totals
		for _, s := range batch.Suites {
			o, ok := s.Cells[key]
			if !ok {
				continue
			}
			switch {
			case o.Kind == matrix.Success:
				n.success++
			case !o.Failed():
				n.allowed++
			case o.Kind == matrix.CompileFailure || o.Kind == matrix.RunFailure:
				n.unexpected++
			case o.Kind == matrix.Infrastructure:
				n.infrastructure++
			default:
				n.notObserved++
			}
		}
		t.AppendRow(table.Row{key.Compiler.String(), key.OptLevel.String(), n.success, n.allowed, n.unexpected, n.notObserved, n.infrastructure})
	}
	b.WriteString("\n")
	t.Render()
}

// writeFailure describes a failing cell with the output of the process behind it.
func writeFailure(b *strings.Builder, suite string, key matrix.Key, o matrix.Outcome) {
	fmt.Fprintf(b, "%s compiling with %s in %s optimisation mode\n",
		color.HighlightStyle.Render(suite),
		color.HighlightStyle.Render(key.Compiler.String()),
		color.HighlightStyle.Render(key.OptLevel.String()))

	var body strings.Builder
	switch o.Kind {
	case matrix.CompileFailure:
		fmt.Fprintf(&body, "Failed to compile suite %s after %d retries.\n", suite, o.Attempts)
	case matrix.RunFailure:
		fmt.Fprintf(&body, "Suite %s failed at run time.\n", suite)
		var runErr *harness.RunError
		if errors.As(o.Err, &runErr) && runErr.Kind == harness.Timeout {
			fmt.Fprintf(&body, "The runtime was killed after %s.\n", runErr.After)
		}
	case matrix.ExpectedCompileFailureNotObserved:
		fmt.Fprintf(&body, "elm-torture expected a failure when compiling suite %s\n", suite)
	case matrix.ExpectedRunFailureNotObserved:
		fmt.Fprintf(&body, "elm-torture expected a failure when running suite %s\n", suite)
	default:
		fmt.Fprintf(&body, "%v\n", o.Err)
	}
	if po, ok := o.ProcessOutput(); ok {
		body.WriteString(indentLines(po.String()) + "\n")
	}
	if o.Kind == matrix.RunFailure && o.WorkDir != "" {
		fmt.Fprintf(&body, "Artifacts: %s\n", o.WorkDir)
	}
	b.WriteString(indentLines(body.String()))
}

func indentLines(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = indent + l
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func styleFor(o matrix.Outcome) lipgloss.Style {
	switch {
	case o.Kind == matrix.Success:
		return color.SuccessStyle
	case !o.Failed():
		return color.AllowedStyle
	default:
		return color.FailureStyle
	}
}
