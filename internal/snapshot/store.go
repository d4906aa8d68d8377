// Package snapshot keeps the latest computed SLA state per org in
// memory so dashboard reads skip the database. Storage remains the
// source of truth; the snapshot is rebuilt on every update.
package snapshot

import (
	"sync"
	"time"

	"visionsla/internal/model"
)

type Store struct {
	mu        sync.RWMutex
	byOrg     map[string][]model.SLAMetric
	updatedAt map[string]time.Time
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		byOrg:     make(map[string][]model.SLAMetric),
		updatedAt: make(map[string]time.Time),
		limit:     limit,
	}
}

func (s *Store) Update(orgID string, metrics []model.SLAMetric) {
	if orgID == "" || len(metrics) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOrg[orgID] = append([]model.SLAMetric(nil), metrics...)
	s.updatedAt[orgID] = time.Now().UTC()
	if len(s.byOrg) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(orgID string) ([]model.SLAMetric, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byOrg[orgID]
	if !ok {
		return nil, time.Time{}, false
	}
	return append([]model.SLAMetric(nil), m...), s.updatedAt[orgID], true
}

func (s *Store) evictOldest() {
	var oldestOrg string
	var oldest time.Time
	for org, ts := range s.updatedAt {
		if oldestOrg == "" || ts.Before(oldest) {
			oldestOrg = org
			oldest = ts
		}
	}
	if oldestOrg != "" {
		delete(s.byOrg, oldestOrg)
		delete(s.updatedAt, oldestOrg)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOrg = make(map[string][]model.SLAMetric)
	s.updatedAt = make(map[string]time.Time)
}
