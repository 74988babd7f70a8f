package domain

import (
	"errors"
	"fmt"
)

// ErrNoActiveSession is returned when a logout (or force-close) targets an
// agent with no open session. Double-logout is reported, not swallowed, so
// callers can tell it apart from a successful close.
var ErrNoActiveSession = errors.New("no active session")

// AlreadyActiveError is returned when a login is attempted for an agent
// that already has an open session. Existing is the session that won.
type AlreadyActiveError struct {
	Existing Session
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("agent %s already has an active session (opened %s)",
		e.Existing.AgentID, e.Existing.OpenedAt.Format("2006-01-02 15:04:05"))
}

// UnknownAgentError is returned when an agent ID is absent from the directory.
type UnknownAgentError struct {
	AgentID string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent: %s", e.AgentID)
}
