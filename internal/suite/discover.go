package suite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// ErrNotDir is returned by Find when the given path is not a directory.
var ErrNotDir = errors.New("provided path is not a directory")

// Find returns the suites under root in sorted order. If root is itself a
// suite it is the only result; otherwise every directory holding the marker
// file is collected, without descending into suites.
func Find(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDir)
	}
	if IsSuite(root) {
		return []string{root}, nil
	}

	var suites []string
	if err := collect(root, &suites); err != nil {
		return nil, err
	}
	slices.Sort(suites)
	return slices.Compact(suites), nil
}

func collect(dir string, suites *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if IsSuite(path) {
			*suites = append(*suites, path)
		} else if entry.IsDir() {
			if err := collect(path, suites); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dedupe removes repeated suite paths while keeping the first occurrence order.
func Dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		key := filepath.Clean(p)
		if abs, err := filepath.Abs(p); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
