package suite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MarkerFile identifies a directory as a suite.
	MarkerFile = "elm.json"
	// TargetsFile optionally lists the root source files, one per line.
	TargetsFile = "targets.txt"
	// DefaultRoot is compiled when no TargetsFile exists.
	DefaultRoot = "Main.elm"
	// DeclarationFile holds the suite's expected behaviour.
	DeclarationFile = "output.json"
	// BuildCacheDir is removed before every compile attempt.
	BuildCacheDir = "elm-stuff"
)

// IsSuite reports whether dir contains the suite marker file.
func IsSuite(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, MarkerFile))
	return err == nil
}

// RootFiles returns the root source files of the suite in dir, relative to dir.
// Blank lines of the targets file are ignored.
func RootFiles(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, TargetsFile))
	if errors.Is(err, os.ErrNotExist) {
		return []string{DefaultRoot}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", TargetsFile, err)
	}

	var roots []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		roots = append(roots, line)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%s lists no root files", TargetsFile)
	}
	return roots, nil
}
