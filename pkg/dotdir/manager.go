// Package dotdir resolves the .tastes directory and the files tastes keeps
// in it: config.toml, the default SQLite databases, and the replay checkpoint.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const dirName = ".tastes"

// Well-known files inside the directory.
const (
	DatabaseFile   = "tastes.db"
	IndexFile      = "products.db"
	checkpointFile = "replay.json"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target resolves the directory to use and creates it if needed. An explicit
// overrideDir wins, then ./.tastes when it exists, then ~/.tastes.
func (m *Manager) Target(overrideDir string) (string, error) {
	dir := overrideDir
	if dir == "" {
		local, err := localDir()
		if err != nil {
			return "", err
		}
		dir = local
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating tastes directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// Path returns the absolute path of name inside the resolved directory.
func (m *Manager) Path(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// localDir returns ./.tastes when it exists and "" otherwise.
func localDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir, nil
	}
	return "", nil
}
