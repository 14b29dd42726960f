package reporting

import (
	"fmt"
	"io"

	"elmtorture/internal/matrix"
)

// Format selects how progress and results are printed.
type Format string

const (
	FormatText  Format = "text"
	FormatQuiet Format = "quiet"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatQuiet, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (expected text, quiet or json)", s)
}

// Reporter receives the progress of a batch and prints its results. All
// methods are safe for concurrent use.
type Reporter interface {
	matrix.Reporter
	// Started is called once, before any suite runs.
	Started(suites []string)
	// Summary is called once, after every suite finished.
	Summary(batch *matrix.BatchResult)
}

// New returns a Reporter printing to w in the given format.
func New(format Format, w io.Writer) (Reporter, error) {
	switch format {
	case FormatText:
		return NewConsoleReporter(w, false), nil
	case FormatQuiet:
		return NewConsoleReporter(w, true), nil
	case FormatJSON:
		return NewJSONReporter(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// Label is the summary label of an outcome.
func Label(o matrix.Outcome) string {
	switch o.Kind {
	case matrix.Success:
		if o.RunSkipped {
			return "success (run skipped)"
		}
		return "success"
	case matrix.CompileFailure:
		if o.Allowed {
			return "allowed compile failure"
		}
	case matrix.RunFailure:
		if o.Allowed {
			return "allowed run failure"
		}
	case matrix.ExpectedCompileFailureNotObserved:
		return "success when elm-torture expected a compile time failure"
	case matrix.ExpectedRunFailureNotObserved:
		return "success when elm-torture expected a run time failure"
	}
	return "failure"
}

// keysOf lists the cells of a batch in matrix order.
func keysOf(batch *matrix.BatchResult) []matrix.Key {
	var keys []matrix.Key
	seen := make(map[matrix.Key]bool)
	for _, s := range batch.Suites {
		for _, k := range s.Keys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
