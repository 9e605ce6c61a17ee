// Package store persists natively created board records. List and
// FindBySourceNCR skip soft-deleted records; FindByID does not, so callers
// deciding on a specific record can still see that it was removed.
package store

import (
	"context"
	"sort"
	"sync"

	"conforma/internal/mrb/models"
	"conforma/pkg/domain"
	"conforma/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.MRBID]*models.MRB
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.MRBID]*models.MRB)}
}

func (s *InMemoryStore) Create(_ context.Context, m *models.MRB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[m.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[m.ID] = m.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, mrbID domain.MRBID) (*models.MRB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.records[mrbID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m.Clone(), nil
}

// FindBySourceNCR returns the live record opened for the given report.
func (s *InMemoryStore) FindBySourceNCR(_ context.Context, ncrID domain.NCRID) (*models.MRB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.records {
		if !m.IsDeleted() && m.BacksNCR(ncrID) {
			return m.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns live records, newest first.
func (s *InMemoryStore) List(_ context.Context) ([]*models.MRB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.MRB, 0, len(s.records))
	for _, m := range s.records {
		if m.IsDeleted() {
			continue
		}
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// Update persists a mutated record if the caller read the current version.
// Soft deletion goes through here too, keeping the CAS contract on removal.
func (s *InMemoryStore) Update(_ context.Context, m *models.MRB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[m.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if cur.Version != m.Version {
		return sentinel.ErrConflict
	}
	m.Version++
	s.records[m.ID] = m.Clone()
	return nil
}
