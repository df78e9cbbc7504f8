package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

// Collection keys
const (
	TasksKey           = "tasks"
	DisabledButtonsKey = "disabledButtons"
)

// Backend names a Namespace implementation
type Backend string

const (
	BackendFile   Backend = "file"
	BackendBolt   Backend = "bolt"
	BackendMemory Backend = "memory"
)

// ValidBackends lists all valid backend values
var ValidBackends = []Backend{BackendFile, BackendBolt, BackendMemory}

// IsValidBackend checks if a string is a valid backend
func IsValidBackend(s string) bool {
	for _, b := range ValidBackends {
		if string(b) == s {
			return true
		}
	}
	return false
}

// Namespace is a persistent key-value namespace.
// This allows swapping between JSON files, bbolt, or memory.
type Namespace interface {
	// Get returns the value at key and whether it was present.
	Get(key string) ([]byte, bool, error)
	// Set overwrites the value at key.
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Lifecycle
	Close() error
}

// ErrInvalidKey is returned for keys outside keyRegex
var ErrInvalidKey = errors.New("invalid key")

// keyRegex validates key format: alphanumeric, hyphens and underscores, 1-64 chars
var keyRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

func validateKey(key string) error {
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Open opens the namespace for backend rooted at dir
func Open(backend Backend, dir string) (Namespace, error) {
	var (
		ns  Namespace
		err error
	)

	// Typed nil pointers must not escape as non-nil interfaces
	switch backend {
	case BackendFile:
		var f *FileNamespace
		if f, err = NewFileNamespace(dir); err == nil {
			ns = f
		}
	case BackendBolt:
		var b *BoltNamespace
		if b, err = NewBoltNamespace(filepath.Join(dir, "taskpad.db")); err == nil {
			ns = b
		}
	case BackendMemory:
		ns = NewMemoryNamespace()
	default:
		err = fmt.Errorf("unknown backend: %s", backend)
	}

	return ns, err
}
