package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/switchboard/internal/domain"
)

// MemorySessionStore implements session.Store in memory. The exclusivity
// claim is a check-and-insert inside a single critical section, giving the
// same atomicity guarantee as the SQLite partial unique index.
type MemorySessionStore struct {
	mu      sync.Mutex
	open    map[string]*domain.Session // agentID -> open session
	history map[string][]domain.Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		open:    make(map[string]*domain.Session),
		history: make(map[string][]domain.Session),
	}
}

// TryOpen atomically claims a new open session for the agent.
func (s *MemorySessionStore) TryOpen(_ context.Context, agentID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.open[agentID]; ok {
		return domain.Session{}, &domain.AlreadyActiveError{Existing: *existing}
	}

	sess := domain.Session{
		ID:       uuid.New().String(),
		AgentID:  agentID,
		OpenedAt: time.Now().UTC(),
	}
	s.open[agentID] = &sess
	s.history[agentID] = append(s.history[agentID], sess)
	return sess, nil
}

// Close marks the agent's open session closed.
func (s *MemorySessionStore) Close(_ context.Context, agentID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open, ok := s.open[agentID]
	if !ok {
		return domain.Session{}, domain.ErrNoActiveSession
	}

	closedAt := time.Now().UTC()
	open.ClosedAt = &closedAt
	delete(s.open, agentID)

	// Update the history copy to match.
	hist := s.history[agentID]
	for i := range hist {
		if hist[i].ID == open.ID {
			hist[i].ClosedAt = &closedAt
		}
	}
	return *open, nil
}

// ActiveSession returns the agent's open session, or nil if none exists.
func (s *MemorySessionStore) ActiveSession(_ context.Context, agentID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open, ok := s.open[agentID]
	if !ok {
		return nil, nil
	}
	cp := *open
	return &cp, nil
}

// History returns all sessions for the agent, oldest first.
func (s *MemorySessionStore) History(_ context.Context, agentID string) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.history[agentID]
	out := make([]domain.Session, len(hist))
	copy(out, hist)
	return out, nil
}

// OpenAgentIDs returns the IDs of all agents with an open session,
// sorted ascending.
func (s *MemorySessionStore) OpenAgentIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.open))
	for id := range s.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
