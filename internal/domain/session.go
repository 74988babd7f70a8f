package domain

import "time"

// Session is one login-to-logout interval for one agent. Sessions are
// append-only history: closing sets ClosedAt, it never deletes or rewrites
// the row. At most one session per agent may be open at any instant.
type Session struct {
	ID       string     `json:"id"`
	AgentID  string     `json:"agentId"`
	OpenedAt time.Time  `json:"openedAt"`
	ClosedAt *time.Time `json:"closedAt,omitempty"`
}

// Active reports whether the session is still open.
func (s Session) Active() bool {
	return s.ClosedAt == nil
}

// Duration returns the session length, using now for open sessions.
func (s Session) Duration(now time.Time) time.Duration {
	if s.ClosedAt != nil {
		return s.ClosedAt.Sub(s.OpenedAt)
	}
	return now.Sub(s.OpenedAt)
}
