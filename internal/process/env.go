package process

import (
	"os"
	"os/exec"
	"path/filepath"
)

// ElmHomeEnv is the environment variable compilers read their package cache location from.
const ElmHomeEnv = "ELM_HOME"

// Inherit returns the named variables that are set in the current environment.
func Inherit(names ...string) map[string]string {
	env := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}
	return env
}

// LookPath resolves name on PATH and returns an absolute path.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Abs(path)
}
