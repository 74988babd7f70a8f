package domain

import (
	"sort"
	"time"
)

// RoutingStatus is an agent's call-routing availability as reported by the
// telephony control plane.
type RoutingStatus string

const (
	StatusAvailable RoutingStatus = "available"
	StatusBusy      RoutingStatus = "busy"
	StatusOnBreak   RoutingStatus = "on_break"
	StatusOffline   RoutingStatus = "offline"
	StatusUnknown   RoutingStatus = "unknown"
)

// Valid reports whether s is one of the defined routing statuses.
func (s RoutingStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOnBreak, StatusOffline, StatusUnknown:
		return true
	}
	return false
}

// ParseRoutingStatus maps a wire token to a RoutingStatus. Unrecognized
// tokens map to StatusUnknown.
func ParseRoutingStatus(s string) RoutingStatus {
	st := RoutingStatus(s)
	if st.Valid() {
		return st
	}
	return StatusUnknown
}

// PresenceRecord is one sampled observation of an agent's routing status.
// Records are transient: the poller overwrites them each cycle and readers
// must treat records older than the staleness window as StatusUnknown.
type PresenceRecord struct {
	AgentID   string        `json:"agentId"`
	Status    RoutingStatus `json:"status"`
	SampledAt time.Time     `json:"sampledAt"`
}

// ScopeSet is the set of agent IDs visible to a viewer. It is derived per
// request from directory data and never cached.
type ScopeSet struct {
	ids map[string]struct{}
}

// NewScopeSet builds a scope from the given agent IDs.
func NewScopeSet(ids ...string) ScopeSet {
	s := ScopeSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Add inserts an agent ID into the scope.
func (s *ScopeSet) Add(id string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

// Contains reports whether the scope includes the agent.
func (s ScopeSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of agents in the scope.
func (s ScopeSet) Len() int { return len(s.ids) }

// IDs returns the scope's agent IDs sorted ascending.
func (s ScopeSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
