package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// JSONStore persists a single JSON document on disk. Writes go to a temp
// file that is synced and renamed over the previous snapshot, so readers
// see either the old or the new document.
type JSONStore struct {
	mu       sync.RWMutex
	filePath string
}

// NewJSONStore creates the data directory if needed.
func NewJSONStore(dataDir, filename string) (*JSONStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}

	return &JSONStore{
		filePath: filepath.Join(dataDir, filename),
	}, nil
}

// Path returns the snapshot location.
func (s *JSONStore) Path() string {
	return s.filePath
}

// Load decodes the snapshot into data. It reports false, without error, when
// no snapshot has been written yet.
func (s *JSONStore) Load(data interface{}) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "open snapshot")
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(data); err != nil {
		return false, errors.Wrapf(err, "decode snapshot %s", s.filePath)
	}
	return true, nil
}

// Save replaces the snapshot with data.
func (s *JSONStore) Save(data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempFile := s.filePath + ".tmp"
	file, err := os.OpenFile(tempFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrap(err, "create temp snapshot")
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempFile)
		return errors.Wrap(err, "encode snapshot")
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempFile)
		return errors.Wrap(err, "sync snapshot")
	}
	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return errors.Wrap(err, "close snapshot")
	}

	return errors.Wrap(os.Rename(tempFile, s.filePath), "replace snapshot")
}
