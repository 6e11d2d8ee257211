// Package store materializes the ground-truth collections (tournaments,
// tracked competitors, user settings) from Postgres into JSON snapshot
// files for fast repeated reads. Every read goes through the last refreshed
// snapshot; staleness is bounded by the last successful refresh.
//
// A snapshot that was never refreshed is a distinct state from an empty
// collection: Get on an uninitialized store returns ErrNotInitialized.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotInitialized is returned by Get when the snapshot file has never
// been written.
var ErrNotInitialized = errors.New("snapshot not initialized")

type snapshotFile[T any] struct {
	Payload    T         `json:"payload"`
	CapturedAt time.Time `json:"captured_at"`
}

// WriteSnapshot replaces the snapshot at path. The write goes through a
// temp file in the same directory and a rename, so concurrent readers only
// ever see a complete file.
func WriteSnapshot[T any](path string, payload T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(snapshotFile[T]{
		Payload:    payload,
		CapturedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod snapshot %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot %s: %w", path, err)
	}
	return nil
}

func ReadSnapshot[T any](path string) (T, time.Time, error) {
	var zero T

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, time.Time{}, ErrNotInitialized
		}
		return zero, time.Time{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var f snapshotFile[T]
	if err := json.Unmarshal(data, &f); err != nil {
		return zero, time.Time{}, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return f.Payload, f.CapturedAt, nil
}
