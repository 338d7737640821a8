package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ml-orchestrator/core/models"
)

// BlobStore is a flat key/value byte store. Keys are slash separated.
// Get and Delete report a missing key with an error wrapping models.ErrNotFound.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// FSBlobStore stores blobs as files under a root directory
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates the root directory if needed
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &FSBlobStore{root: root}, nil
}

func (s *FSBlobStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Put writes data atomically: temp file, fsync, rename, then fsync of the directory
func (s *FSBlobStore) Put(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o644)
}

// Get reads a blob
func (s *FSBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, models.ErrNotFound)
	}
	return data, err
}

// Exists reports whether a blob is present
func (s *FSBlobStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete removes a blob
func (s *FSBlobStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, models.ErrNotFound)
	}
	return err
}

// List returns the keys directly under prefix, which must end in "/"
func (s *FSBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.path(prefix))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.Contains(e.Name(), ".tmp.") {
			continue
		}
		keys = append(keys, prefix+e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
