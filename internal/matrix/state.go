package matrix

import (
	"os"
	"sync"
	"sync/atomic"

	"elmtorture/pkg/logging"
)

// FailureToken records that some cell failed. It is never cleared.
type FailureToken struct {
	failed atomic.Bool
}

// Set marks the token.
func (t *FailureToken) Set() {
	t.failed.Store(true)
}

// Failed reports whether Set has been called.
func (t *FailureToken) Failed() bool {
	return t.failed.Load()
}

// tempDir is the lazily created temporary output directory of a run.
type tempDir struct {
	mu      sync.Mutex
	path    string
	keep    bool
	created bool
}

func (d *tempDir) get() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.created {
		return d.path, nil
	}
	path, err := os.MkdirTemp("", "elm-torture")
	if err != nil {
		return "", err
	}
	d.path = path
	d.created = true
	return path, nil
}

// preserve keeps the directory after cleanup.
func (d *tempDir) preserve() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keep = true
}

// cleanup removes the directory unless it was preserved, and returns the
// path of a preserved directory.
func (d *tempDir) cleanup() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.created {
		return ""
	}
	if d.keep {
		logging.Info("Matrix", "Keeping temporary directory %s", d.path)
		return d.path
	}
	if err := os.RemoveAll(d.path); err != nil {
		logging.Warn("Matrix", "Could not remove temporary directory %s: %v", d.path, err)
	}
	return ""
}
