package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"elmtorture/internal/config"
	"elmtorture/internal/matrix"
	"elmtorture/internal/suite"
)

// Report is the detailed record of one batch written by WriteReport.
type Report struct {
	RunID      uuid.UUID                  `json:"run-id"`
	StartedAt  time.Time                  `json:"started-at"`
	FinishedAt time.Time                  `json:"finished-at"`
	Compilers  []CompilerInfo             `json:"compilers"`
	OptLevels  []config.OptimizationLevel `json:"opt-levels"`
	ExitCode   int                        `json:"exit-code"`
	Suites     []SuiteReport              `json:"suites"`
	Skipped    []string                   `json:"skipped,omitempty"`
	TempDir    string                     `json:"temp-dir,omitempty"`
}

type CompilerInfo struct {
	Name    string              `json:"name"`
	Path    string              `json:"path"`
	Variant suite.StdlibVariant `json:"stdlib-variant"`
}

type SuiteReport struct {
	Suite     string       `json:"suite"`
	OutDir    string       `json:"out-dir"`
	Preserved bool         `json:"preserved"`
	ExitCode  int          `json:"exit-code"`
	Cells     []CellReport `json:"cells"`
}

type CellReport struct {
	Compiler string                   `json:"compiler"`
	OptLevel config.OptimizationLevel `json:"opt-level"`
	Outcome  matrix.Outcome           `json:"outcome"`
}

// NewReport builds the report of a finished batch. keys fixes the order of
// compilers, optimization levels and cells.
func NewReport(runID uuid.UUID, startedAt, finishedAt time.Time, keys []matrix.Key, batch *matrix.BatchResult) *Report {
	r := &Report{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		ExitCode:   batch.ExitCode(),
		Skipped:    batch.Skipped,
		TempDir:    batch.TempDir,
	}

	seenCompilers := make(map[string]bool)
	seenLevels := make(map[config.OptimizationLevel]bool)
	for _, k := range keys {
		if !seenCompilers[k.Compiler.Path] {
			seenCompilers[k.Compiler.Path] = true
			r.Compilers = append(r.Compilers, CompilerInfo{Name: k.Compiler.Name, Path: k.Compiler.Path, Variant: k.Compiler.Variant})
		}
		if !seenLevels[k.OptLevel] {
			seenLevels[k.OptLevel] = true
			r.OptLevels = append(r.OptLevels, k.OptLevel)
		}
	}

	for _, s := range batch.Suites {
		sr := SuiteReport{Suite: s.Suite, OutDir: s.OutDir, Preserved: s.Preserved, ExitCode: s.ExitCode()}
		for _, k := range keys {
			if o, ok := s.Cells[k]; ok {
				sr.Cells = append(sr.Cells, CellReport{Compiler: k.Compiler.Name, OptLevel: k.OptLevel, Outcome: o})
			}
		}
		r.Suites = append(r.Suites, sr)
	}
	return r
}

// FileName is the name of the report file inside the report directory.
func (r *Report) FileName() string {
	return fmt.Sprintf("elm-torture-%s.json", r.RunID)
}

// WriteReport writes r into dir, creating dir if needed, and returns the file path.
func WriteReport(dir string, r *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	path := filepath.Join(dir, r.FileName())
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
