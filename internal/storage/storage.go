package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
)

// Storage handles persistence of meeting snapshots
type Storage struct {
	dataDir string
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
	}, nil
}

// Dir returns the resolved data directory.
func (s *Storage) Dir() string {
	return s.dataDir
}

// getSnapshotPath returns the path to the snapshot file of a spider
func (s *Storage) getSnapshotPath(spider string) string {
	if spider == "" {
		return filepath.Join(s.dataDir, "snapshot.json")
	}
	return filepath.Join(s.dataDir, fmt.Sprintf("snapshot_%s.json", spider))
}

// LoadSnapshot loads a snapshot from disk. A missing file yields an empty snapshot.
func (s *Storage) LoadSnapshot(spider string) (*event.Snapshot, error) {
	path := s.getSnapshotPath(spider)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return event.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot event.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	if snapshot.Events == nil {
		snapshot.Events = make(map[string]*event.Event)
	}

	return &snapshot, nil
}

// SaveSnapshot saves a snapshot to disk, replacing the previous file atomically
func (s *Storage) SaveSnapshot(snapshot *event.Snapshot, spider string) error {
	path := s.getSnapshotPath(spider)

	snapshot.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	return nil
}

// UpdateSnapshot records the changes between the stored snapshot and events,
// then saves events as the new snapshot. It returns the detected changes.
func (s *Storage) UpdateSnapshot(events []*event.Event, spider string) ([]*event.EventChange, error) {
	previous, err := s.LoadSnapshot(spider)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	changes := event.CompareSnapshots(previous, events, now)

	snapshot := event.CreateSnapshot(events, now.Format(time.RFC3339))
	snapshot.ChangeLog = previous.ChangeLog
	snapshot.AppendChanges(changes)

	if err := s.SaveSnapshot(snapshot, spider); err != nil {
		return nil, err
	}
	return changes, nil
}

// ErrNotFound is returned when a snapshot has no meeting with the given ID.
var ErrNotFound = errors.New("event not found")

// GetEventByID retrieves a meeting by ID from a spider's snapshot
func (s *Storage) GetEventByID(spider, eventID string) (*event.Event, error) {
	snapshot, err := s.LoadSnapshot(spider)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	if evt, exists := snapshot.Events[eventID]; exists {
		return evt, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, eventID)
}
