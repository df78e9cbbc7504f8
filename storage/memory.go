package storage

import "sync"

// MemoryNamespace implements Namespace in memory. Nothing survives the process.
type MemoryNamespace struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryNamespace creates an empty in-memory namespace
func NewMemoryNamespace() *MemoryNamespace {
	return &MemoryNamespace{data: make(map[string][]byte)}
}

func (s *MemoryNamespace) Get(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (s *MemoryNamespace) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte{}, value...)
	return nil
}

func (s *MemoryNamespace) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryNamespace) Close() error {
	return nil
}
