package memory

import (
	"context"
	"sort"
	"sync"

	audit "conforma/pkg/platform/audit"
)

type entityKey struct {
	entityType string
	entityID   string
}

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[entityKey][]audit.Event
	order  []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[entityKey][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[entityKey][]audit.Event)
	s.order = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityKey{entityType: event.EntityType, entityID: event.EntityID}
	s.events[key] = append(s.events[key], event)
	s.order = append(s.order, event)
	return nil
}

// ListByEntity returns the trail for one record in append order.
func (s *InMemoryStore) ListByEntity(_ context.Context, entityType, entityID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := entityKey{entityType: entityType, entityID: entityID}
	return append([]audit.Event{}, s.events[key]...), nil
}

// ListRecent returns the most recent N events across all records,
// newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := append([]audit.Event{}, s.order...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}
