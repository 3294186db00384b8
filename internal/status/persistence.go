// Package status provides sync outcome tracking and persistence for the
// daily scheduler.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// StateFileName is the name of the scheduler state file
	StateFileName = "sync_state.json"
)

// StatePersistence defines the interface for scheduler state persistence
type StatePersistence interface {
	// SaveState saves the scheduler state to persistent storage
	SaveState(ctx context.Context, state *SchedulerState) error

	// LoadState loads the scheduler state from persistent storage.
	// Returns nil (no error) if no state has been persisted yet, so the
	// caller can apply its configured defaults on first run.
	LoadState(ctx context.Context) (*SchedulerState, error)
}

// fileStatePersistence implements StatePersistence using the local filesystem
type fileStatePersistence struct {
	basePath string
}

// NewFileStatePersistence creates a new file-based state persistence.
// basePath is the directory where the state file is stored.
func NewFileStatePersistence(basePath string) StatePersistence {
	return &fileStatePersistence{
		basePath: basePath,
	}
}

// SaveState saves the scheduler state to a JSON file
func (f *fileStatePersistence) SaveState(_ context.Context, state *SchedulerState) error {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	filePath := filepath.Join(f.basePath, StateFileName)

	// Pretty printing for operator readability
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scheduler state: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, filePath); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

// LoadState loads the scheduler state from the JSON file
func (f *fileStatePersistence) LoadState(_ context.Context) (*SchedulerState, error) {
	filePath := filepath.Join(f.basePath, StateFileName)

	// #nosec G304 -- filePath is constructed from a trusted base path
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No state yet - this is OK for first run
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state SchedulerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scheduler state: %w", err)
	}

	return &state, nil
}
