package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileKeyStore keeps the API key in a JSON file readable only by the owner.
type FileKeyStore struct {
	path string
	mu   sync.Mutex
}

type credentials struct {
	HeliusAPIKey string `json:"helius_api_key"`
}

// NewFileKeyStore returns a store backed by path. The file is created on the
// first Save.
func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

// Path returns the backing file.
func (s *FileKeyStore) Path() string { return s.path }

// Load returns the saved key, or "" if the file does not exist.
func (s *FileKeyStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading key file: %w", err)
	}

	var c credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("parsing key file %s: %w", s.path, err)
	}
	return c.HeliusAPIKey, nil
}

// Save writes key, replacing any previous file atomically.
func (s *FileKeyStore) Save(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(credentials{HeliusAPIKey: key}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing key file: %w", err)
	}
	return nil
}

// Clear deletes the key file.
func (s *FileKeyStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing key file: %w", err)
	}
	return nil
}
