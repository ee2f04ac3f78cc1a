// Package snapshot implements the file-backed persistence mechanism for
// a detector's exported state.
// It bypasses the per-record storage.Storage interface entirely: callers
// invoke SaveToFile/LoadFromFile explicitly around Detector.ExportState
// and Detector.ImportState rather than wiring a Storage implementation.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/repomemory/dupcore/internal/storage"
	"github.com/repomemory/dupcore/internal/types"
)

// SaveToFile writes snap to path as a single JSON document:
// `{records: [...], bloom: base64}`. The write goes through
// a temp file in the same directory followed by a rename, so a crash
// mid-write never leaves a half-written snapshot at path.
func SaveToFile(path string, snap storage.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return types.NewStorageError("snapshot.SaveToFile", fmt.Errorf("encode snapshot: %w", err))
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return types.NewStorageError("snapshot.SaveToFile", fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return types.NewStorageError("snapshot.SaveToFile", fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return types.NewStorageError("snapshot.SaveToFile", fmt.Errorf("close temp file: %w", err))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return types.NewStorageError("snapshot.SaveToFile", fmt.Errorf("rename into place: %w", err))
	}
	return nil
}

// LoadFromFile reads a snapshot document previously written by
// SaveToFile (or any producer of the same JSON shape) and decodes it
// into a storage.Snapshot. It does not touch any Storage back-end;
// callers feed the result into Detector.ImportState.
func LoadFromFile(path string) (storage.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return storage.Snapshot{}, types.NewStorageError("snapshot.LoadFromFile", fmt.Errorf("read file: %w", err))
	}

	var snap storage.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return storage.Snapshot{}, types.NewStorageError("snapshot.LoadFromFile", fmt.Errorf("decode snapshot: %w", err))
	}
	return snap, nil
}
