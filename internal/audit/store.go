package audit

import (
	"sync"

	"visionsla/internal/model"
)

// Store is a bounded in-memory ring of the most recent audit events,
// serving dashboard reads. The database holds the full trail.
type Store struct {
	mu    sync.RWMutex
	buf   []model.AuditEvent
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(ev model.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, ev)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = ev
}

// Recent returns up to limit newest events for one org, newest last.
func (s *Store) Recent(orgID string, limit int) []model.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.AuditEvent, 0, limit)
	for i := len(s.buf) - 1; i >= 0 && len(out) < limit; i-- {
		if orgID == "" || s.buf[i].OrgID == orgID {
			out = append(out, s.buf[i])
		}
	}
	// reverse to newest-last
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
