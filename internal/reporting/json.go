package reporting

import (
	"encoding/json"
	"io"
	"sync"

	"elmtorture/internal/config"
	"elmtorture/internal/matrix"
	"elmtorture/pkg/logging"
)

// Event is one line of the json output format.
type Event struct {
	Event     string                   `json:"event"`
	Suite     string                   `json:"suite,omitempty"`
	Suites    []string                 `json:"suites,omitempty"`
	Compiler  string                   `json:"compiler,omitempty"`
	OptLevel  config.OptimizationLevel `json:"opt-level,omitempty"`
	Outcome   *matrix.Outcome          `json:"outcome,omitempty"`
	OutDir    string                   `json:"out-dir,omitempty"`
	Preserved bool                     `json:"preserved,omitempty"`
	ExitCode  *int                     `json:"exit-code,omitempty"`
	Skipped   []string                 `json:"skipped,omitempty"`
	TempDir   string                   `json:"temp-dir,omitempty"`
}

const (
	EventStarted       = "started"
	EventSuiteStarted  = "suite-started"
	EventCell          = "cell"
	EventSuiteFinished = "suite-finished"
	EventSuiteSkipped  = "suite-skipped"
	EventSummary       = "summary"
)

// JSONReporter writes one JSON object per line for every event.
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

func (j *JSONReporter) emit(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(e); err != nil {
		logging.Warn("Reporting", "Could not write %s event: %v", e.Event, err)
	}
}

func (j *JSONReporter) Started(suites []string) {
	j.emit(Event{Event: EventStarted, Suites: suites})
}

func (j *JSONReporter) SuiteStarted(suite string, _ []matrix.Key) {
	j.emit(Event{Event: EventSuiteStarted, Suite: suite})
}

func (j *JSONReporter) CellFinished(suite string, key matrix.Key, outcome matrix.Outcome) {
	j.emit(Event{
		Event:    EventCell,
		Suite:    suite,
		Compiler: key.Compiler.Name,
		OptLevel: key.OptLevel,
		Outcome:  &outcome,
	})
}

func (j *JSONReporter) SuiteFinished(result *matrix.SuiteResult) {
	code := result.ExitCode()
	j.emit(Event{
		Event:     EventSuiteFinished,
		Suite:     result.Suite,
		OutDir:    result.OutDir,
		Preserved: result.Preserved,
		ExitCode:  &code,
	})
}

func (j *JSONReporter) SuiteSkipped(suite string) {
	j.emit(Event{Event: EventSuiteSkipped, Suite: suite})
}

func (j *JSONReporter) Summary(batch *matrix.BatchResult) {
	code := batch.ExitCode()
	suites := make([]string, 0, len(batch.Suites))
	for _, s := range batch.Suites {
		suites = append(suites, s.Suite)
	}
	j.emit(Event{
		Event:    EventSummary,
		Suites:   suites,
		ExitCode: &code,
		Skipped:  batch.Skipped,
		TempDir:  batch.TempDir,
	})
}
