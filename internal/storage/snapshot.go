package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"liquidityCore/internal/model"
)

// FileSnapshotStore persists pool snapshots as local JSON files. Writes go
// through a temp file plus rename so a crash never leaves a torn snapshot.
type FileSnapshotStore struct {
	Path string
}

// Load reads the snapshot, reporting found=false when none exists yet.
func (s *FileSnapshotStore) Load() (*model.PoolSnapshot, bool, error) {
	if s == nil || s.Path == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap model.PoolSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, true, nil
}

// Save atomically replaces the stored snapshot.
func (s *FileSnapshotStore) Save(snap *model.PoolSnapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
