// Package store persists corrective/preventive actions, with the same
// contract as the report store: duplicate-id rejection on Create and a
// version compare-and-swap on Update.
package store

import (
	"context"
	"sort"
	"sync"

	"conforma/internal/capa/models"
	"conforma/pkg/domain"
	"conforma/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.CAPAID]*models.CAPA
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.CAPAID]*models.CAPA)}
}

func (s *InMemoryStore) Create(_ context.Context, c *models.CAPA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[c.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[c.ID] = c.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, capaID domain.CAPAID) (*models.CAPA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.records[capaID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// List returns matching actions, newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.CAPA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.CAPA, 0, len(s.records))
	for _, c := range s.records {
		if filter.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// Update persists a mutated action if the caller read the current version.
func (s *InMemoryStore) Update(_ context.Context, c *models.CAPA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if cur.Version != c.Version {
		return sentinel.ErrConflict
	}
	c.Version++
	s.records[c.ID] = c.Clone()
	return nil
}
