// Package modelstore persists trained networks by key.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pm10cast/internal/forecast"
	"pm10cast/internal/log"
	"pm10cast/internal/lstm"
)

const fileExt = ".msgpack"

// FileStore keeps one <key>.msgpack file per model in Dir
type FileStore struct {
	Dir string
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model directory %s: %w", dir, err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid model key %q", key)
	}
	return filepath.Join(s.Dir, key+fileExt), nil
}

// Load reads and decodes the model stored under key
func (s *FileStore) Load(ctx context.Context, key string) (forecast.Model, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &forecast.ModelNotFoundError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", key, err)
	}

	return decode(key, data)
}

// Save writes the model atomically via a temp file and rename
func (s *FileStore) Save(ctx context.Context, key string, m forecast.Model) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode model %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store model %s: %w", key, err)
	}

	log.Infow("model saved", "key", key, "path", path, "bytes", len(data))
	return nil
}

func decode(key string, data []byte) (forecast.Model, error) {
	net, err := lstm.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", key, err)
	}
	return net, nil
}

// BlobStore is the subset of the database used for models
type BlobStore interface {
	SaveModel(ctx context.Context, key string, data []byte) error
	LoadModel(ctx context.Context, key string) ([]byte, error)
}

// SQLStore keeps models in the models table
type SQLStore struct {
	db BlobStore
}

// NewSQLStore wraps a database handle
func NewSQLStore(db BlobStore) *SQLStore {
	return &SQLStore{db: db}
}

// Load decodes the model stored under key
func (s *SQLStore) Load(ctx context.Context, key string) (forecast.Model, error) {
	data, err := s.db.LoadModel(ctx, key)
	if err != nil {
		return nil, err
	}
	return decode(key, data)
}

// Save encodes and upserts the model
func (s *SQLStore) Save(ctx context.Context, key string, m forecast.Model) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode model %s: %w", key, err)
	}
	if err := s.db.SaveModel(ctx, key, data); err != nil {
		return err
	}
	log.Infow("model saved", "key", key, "bytes", len(data))
	return nil
}
