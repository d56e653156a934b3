package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ReplayCheckpoint records how far a replay got through the event log.
type ReplayCheckpoint struct {
	// Storage identifies the event log the cursor belongs to, e.g.
	// "sqlite:/path/to/tastes.sqlite". Cursors are only meaningful
	// for the log that produced them.
	Storage string `json:"storage"`

	// UserID is set when the replay was limited to one user.
	UserID string `json:"user_id,omitempty"`

	// Cursor is the last replayed entry's position.
	Cursor string `json:"cursor"`

	// Applied counts events applied across runs.
	Applied int `json:"applied"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Matches reports whether the checkpoint was written for the same log and
// user filter.
func (c *ReplayCheckpoint) Matches(storage, userID string) bool {
	return c != nil && c.Storage == storage && c.UserID == userID
}

// LoadReplayCheckpoint loads the checkpoint from a target .tastes/replay.json.
// Returns nil, nil if no checkpoint exists.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadReplayCheckpoint(overrideDir string) (*ReplayCheckpoint, error) {
	path, err := m.Path(overrideDir, checkpointFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading replay checkpoint: %w", err)
	}

	cp := &ReplayCheckpoint{}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("parsing replay checkpoint: %w", err)
	}

	return cp, nil
}

// SaveReplayCheckpoint persists the checkpoint to a target .tastes/replay.json.
func (m *Manager) SaveReplayCheckpoint(cp *ReplayCheckpoint, overrideDir string) error {
	if cp == nil {
		return errors.New("cannot save nil replay checkpoint")
	}

	path, err := m.Path(overrideDir, checkpointFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling replay checkpoint: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing replay checkpoint: %w", err)
	}

	return nil
}

// ClearReplayCheckpoint removes the checkpoint file so the next replay starts
// at the beginning of the log. Returns nil if the file doesn't exist.
func (m *Manager) ClearReplayCheckpoint(overrideDir string) error {
	path, err := m.Path(overrideDir, checkpointFile)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing replay checkpoint: %w", err)
	}

	return nil
}
