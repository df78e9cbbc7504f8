package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileNamespace implements Namespace as a directory of JSON files,
// one file per key
type FileNamespace struct {
	dir string
	mu  sync.RWMutex
}

// NewFileNamespace creates or opens a directory-backed namespace
func NewFileNamespace(dir string) (*FileNamespace, error) {
	if dir == "" {
		return nil, fmt.Errorf("namespace directory not set")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create namespace directory: %w", err)
	}

	return &FileNamespace{dir: dir}, nil
}

// Dir returns the namespace directory
func (s *FileNamespace) Dir() string {
	return s.dir
}

func (s *FileNamespace) filename(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get reads the file for key
func (s *FileNamespace) Get(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.filename(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return data, true, nil
}

// Set writes value to the file for key via a temp file and rename
func (s *FileNamespace) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	// Pretty-print valid JSON, store anything else as given
	var buf bytes.Buffer
	if err := json.Indent(&buf, value, "", "  "); err != nil {
		buf.Reset()
		buf.Write(value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, s.filename(key))
}

// Delete removes the file for key
func (s *FileNamespace) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.filename(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Close closes the namespace
func (s *FileNamespace) Close() error {
	// Files are closed after every write, but interface requires it
	return nil
}
