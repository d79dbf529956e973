package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileGraphStore implements GraphStore on top of a single JSON file.
type FileGraphStore struct {
	path string
}

// NewFileGraphStore creates a store for the document at path. Nothing is
// touched on disk until the first Save.
func NewFileGraphStore(path string) *FileGraphStore {
	return &FileGraphStore{path: path}
}

// Path returns the location of the graph document.
func (s *FileGraphStore) Path() string {
	return s.path
}

// Load reads and decodes the graph document.
func (s *FileGraphStore) Load(ctx context.Context) (Graph, error) {
	if err := ctx.Err(); err != nil {
		return Graph{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Graph{}, ErrNotFound
		}
		return Graph{}, fmt.Errorf("failed to read journey graph: %w", err)
	}

	g, err := DecodeGraph(data)
	if err != nil {
		return Graph{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return g, nil
}

// Save writes the document to a temp file beside the target and renames it
// into place, creating the parent directory first.
func (s *FileGraphStore) Save(ctx context.Context, g Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := EncodeGraph(g)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create journey graph directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".journey-graph-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write journey graph: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync journey graph: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close journey graph: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set journey graph permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace journey graph: %w", err)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (s *FileGraphStore) Close() error {
	return nil
}
