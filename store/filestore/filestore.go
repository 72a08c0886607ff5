// Package filestore implements a Loader backed by a directory of JSON
// files. It is a simple durable backing store for read-through and
// write-back caching: one file per key, atomic writes, advisory file
// locking so multiple processes can share the directory.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// record is the on-disk envelope. Keeping the key inside the file makes the
// directory greppable and guards against hash collisions.
type record struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Store is a file-per-key backing store. Values must be JSON-marshalable;
// Load returns them as decoded JSON (map[string]any, []any, float64, ...).
type Store struct {
	dir      string // absolute path to the store directory
	lockPath string
	logger   *slog.Logger
}

// New creates a file store rooted at dir. The directory and its 256 fan-out
// subdirectories (00-ff) are created up front so writes never need to mkdir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for i := 0; i < 256; i++ {
		sub := filepath.Join(absDir, fmt.Sprintf("%02x", i))
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create subdirectory %02x: %w", i, err)
		}
	}

	return &Store{
		dir:      absDir,
		lockPath: filepath.Join(absDir, ".lock"),
		logger:   logger,
	}, nil
}

// Load reads the value for key. A missing file is not an error: it returns
// (nil, nil) so the cache treats it as "backing store has nothing".
func (s *Store) Load(ctx context.Context, key string) (any, error) {
	data, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt store file for key %q: %w", key, err)
	}
	if rec.Key != key {
		return nil, fmt.Errorf("store file key mismatch: have %q, want %q", rec.Key, key)
	}

	return rec.Value, nil
}

// Put writes the value for key. The write goes to a temp file first and is
// renamed into place, so readers never observe a partial file. An advisory
// flock serializes writers across processes sharing the directory.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(record{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %q: %w", key, err)
	}

	fl := flock.New(s.lockPath)
	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire store lock for key %q", key)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release store lock", "error", err)
		}
	}()

	path := s.keyPath(key)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename prevents partial files from ever being visible.
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename store file: %w", err)
	}

	return nil
}

// Delete removes the value for key. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.keyPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete store file: %w", err)
	}
	return nil
}

// keyPath maps a key to its file. Keys are hashed so arbitrary strings
// become safe filenames; the first hash byte picks the fan-out
// subdirectory, mirroring how build caches spread entries on disk.
func (s *Store) keyPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, h[:2], h)
}
