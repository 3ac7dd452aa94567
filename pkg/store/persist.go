package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/contentlayer/pkg/adapters/fs"
	"github.com/aretw0/contentlayer/pkg/core"
)

// FromFile loads a store from a persisted document.
// A missing file yields an empty store; a file that exists but cannot be
// decoded is an error wrapping core.ErrInvalidDocument.
func FromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil // Start fresh
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data store: %w", err)
	}

	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// WriteFile serializes the whole store and atomically replaces the document
// at path. A failed write leaves the previous document untouched.
func (s *Store) WriteFile(path string) error {
	data, err := s.marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersist, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersist, err)
	}

	if err := fs.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersist, err)
	}

	s.dirty = false
	return nil
}
