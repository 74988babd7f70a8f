// Package presence replicates sampled routing status to scoped readers
// with bounded staleness. The poller is the hub's only writer; readers get
// snapshot reads and never trigger a telephony probe.
package presence

import (
	"sync"
	"time"

	"github.com/soyeahso/switchboard/internal/domain"
)

// Hub holds the latest presence sample per agent.
type Hub struct {
	mu         sync.RWMutex
	records    map[string]domain.PresenceRecord
	staleAfter time.Duration
	now        func() time.Time
}

// NewHub creates a hub for the given polling interval. A record older than
// two intervals is no longer authoritative and reads as StatusUnknown.
func NewHub(pollInterval time.Duration) *Hub {
	return &Hub{
		records:    make(map[string]domain.PresenceRecord),
		staleAfter: 2 * pollInterval,
		now:        time.Now,
	}
}

// Publish stores the record, overwriting any previous sample for the same
// agent. Last writer wins by SampledAt: an out-of-order older sample never
// clobbers a newer one.
func (h *Hub) Publish(rec domain.PresenceRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.records[rec.AgentID]; ok && prev.SampledAt.After(rec.SampledAt) {
		return
	}
	h.records[rec.AgentID] = rec
}

// ReadScoped returns one record per agent in the scope, ordered by agent ID
// ascending. Stale samples and agents the hub has never seen read as
// StatusUnknown rather than as a stale authoritative value.
func (h *Hub) ReadScoped(scope domain.ScopeSet) []domain.PresenceRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := h.now().Add(-h.staleAfter)
	out := make([]domain.PresenceRecord, 0, scope.Len())
	for _, id := range scope.IDs() {
		out = append(out, h.effective(id, cutoff))
	}
	return out
}

// Count returns how many agents in the scope match the predicate, applied
// to the same staleness-adjusted view ReadScoped serves.
func (h *Hub) Count(scope domain.ScopeSet, pred func(domain.PresenceRecord) bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := h.now().Add(-h.staleAfter)
	n := 0
	for _, id := range scope.IDs() {
		if pred(h.effective(id, cutoff)) {
			n++
		}
	}
	return n
}

// effective applies the staleness bound. Callers hold at least the read lock.
func (h *Hub) effective(agentID string, cutoff time.Time) domain.PresenceRecord {
	rec, ok := h.records[agentID]
	if !ok {
		return domain.PresenceRecord{AgentID: agentID, Status: domain.StatusUnknown}
	}
	if rec.SampledAt.Before(cutoff) {
		rec.Status = domain.StatusUnknown
	}
	return rec
}
