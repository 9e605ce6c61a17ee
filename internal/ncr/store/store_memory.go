// Package store persists nonconformance reports. Both implementations share
// one contract: Create rejects duplicate ids, Update is a compare-and-swap on
// Version, and reads hand back copies the caller can mutate freely.
package store

import (
	"context"
	"sort"
	"sync"

	"conforma/internal/ncr/models"
	"conforma/pkg/domain"
	"conforma/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.NCRID]*models.NCR
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.NCRID]*models.NCR)}
}

func (s *InMemoryStore) Create(_ context.Context, n *models.NCR) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[n.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[n.ID] = n.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, ncrID domain.NCRID) (*models.NCR, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.records[ncrID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return n.Clone(), nil
}

// List returns matching reports, newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.NCR, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.NCR, 0, len(s.records))
	for _, n := range s.records {
		if filter.Matches(n) {
			out = append(out, n.Clone())
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

// Update persists a mutated report if the caller read the current version.
// On success the caller's copy advances to the stored version.
func (s *InMemoryStore) Update(_ context.Context, n *models.NCR) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[n.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if cur.Version != n.Version {
		return sentinel.ErrConflict
	}
	n.Version++
	s.records[n.ID] = n.Clone()
	return nil
}
