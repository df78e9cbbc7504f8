package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("taskpad")

// BoltNamespace implements Namespace using a single bbolt bucket
type BoltNamespace struct {
	db *bolt.DB
}

// NewBoltNamespace creates or opens a bbolt-backed namespace at path.
// bbolt holds an exclusive lock on the file until Close.
func NewBoltNamespace(path string) (*BoltNamespace, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create namespace directory: %w", err)
	}

	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt namespace: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltNamespace{db: db}, nil
}

// Get retrieves the value at key
func (s *BoltNamespace) Get(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v != nil {
			// v is only valid for the life of the transaction
			value = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return value, value != nil, nil
}

// Set overwrites the value at key
func (s *BoltNamespace) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	})
}

// Delete removes key
func (s *BoltNamespace) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
}

// Close releases the database file
func (s *BoltNamespace) Close() error {
	return s.db.Close()
}
