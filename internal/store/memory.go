package store

import (
	"errors"
	"sync"

	"github.com/i474232898/wu-weather/internal/weather"
)

var (
	// ErrNotFound is returned when no attributes have been stored for a station.
	ErrNotFound = errors.New("no weather data for station")
)

// MemoryStore is a concurrency-safe in-memory attribute store. It keeps only the
// current set per station; nothing is persisted.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station name
	data map[string]*weather.Attributes
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*weather.Attributes),
	}
}

// Merge overwrites the fields set in partial and returns a copy of the result.
func (s *MemoryStore) Merge(station string, partial weather.Attributes) weather.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, ok := s.data[station]
	if !ok {
		attrs = &weather.Attributes{}
		s.data[station] = attrs
	}

	attrs.Merge(partial)
	return attrs.Clone()
}

// Get returns a copy of the station's attributes.
func (s *MemoryStore) Get(station string) (weather.Attributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs, ok := s.data[station]
	if !ok {
		return weather.Attributes{}, ErrNotFound
	}
	return attrs.Clone(), nil
}
