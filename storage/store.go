package storage

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Store defines the interface for persisting named collections of records.
// Implementations never fail: an unavailable or broken backend degrades
// to "nothing saved, nothing loaded".
type Store interface {
	// Save overwrites the collection under key with records (a slice).
	Save(key string, records any)
	// Load returns the records under key, or an empty slice.
	Load(key string) []json.RawMessage
	// Clear removes the collection under key.
	Clear(key string)
}

// Adapter implements Store on top of a Namespace
type Adapter struct {
	ns  Namespace
	log zerolog.Logger
}

// NewAdapter wraps ns. A nil ns means the namespace is unavailable and
// every operation becomes a no-op.
func NewAdapter(ns Namespace, log zerolog.Logger) *Adapter {
	return &Adapter{
		ns:  ns,
		log: log.With().Str("component", "storage").Logger(),
	}
}

// Available reports whether a backing namespace is present.
func (a *Adapter) Available() bool {
	return a.ns != nil
}

// Save serializes records and writes them under key
func (a *Adapter) Save(key string, records any) {
	if a.ns == nil {
		return
	}

	data, err := json.Marshal(records)
	if err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("failed to encode records")
		return
	}

	if err := a.ns.Set(key, data); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("failed to save records")
		return
	}

	a.log.Debug().Str("key", key).RawJSON("records", data).Msg("records saved")
}

// Load reads the JSON array stored under key. Anything other than a
// well-formed array is treated as no data.
func (a *Adapter) Load(key string) []json.RawMessage {
	records := []json.RawMessage{}
	if a.ns == nil {
		return records
	}

	data, ok, err := a.ns.Get(key)
	if err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("failed to read records")
		return records
	}
	if !ok {
		a.log.Debug().Str("key", key).Msg("no records stored")
		return records
	}

	var parsed []json.RawMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("ignoring malformed records")
		return records
	}
	if parsed == nil {
		// stored value was the JSON literal null
		return records
	}

	a.log.Debug().Str("key", key).Int("count", len(parsed)).Msg("records loaded")
	return parsed
}

// Clear removes key from the namespace
func (a *Adapter) Clear(key string) {
	if a.ns == nil {
		return
	}

	if err := a.ns.Delete(key); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("failed to clear records")
	}
}

// LoadInto loads the collection under key and decodes each record into T.
// Records that don't decode are skipped.
func LoadInto[T any](s Store, key string, log zerolog.Logger) []T {
	raw := s.Load(key)
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			log.Warn().Err(err).Str("key", key).Int("index", i).Msg("skipping malformed record")
			continue
		}
		out = append(out, v)
	}
	return out
}
