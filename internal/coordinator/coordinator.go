// Package coordinator composes the session, directory, and presence layers
// into the operations callers actually invoke. It owns no state of its own.
package coordinator

import (
	"context"
	"time"

	"github.com/soyeahso/switchboard/internal/directory"
	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/soyeahso/switchboard/internal/session"
)

// CredentialChecker verifies an agent's credentials out of band. The
// coordinator only consumes the boolean outcome; raw credentials never
// enter this package.
type CredentialChecker interface {
	Check(ctx context.Context, agentID, secret string) (bool, error)
}

// AllowAll is a CredentialChecker that accepts every agent. Deployments
// without a credential backend run with it.
type AllowAll struct{}

func (AllowAll) Check(context.Context, string, string) (bool, error) { return true, nil }

// AuthFailedError reports a credential check that returned false.
type AuthFailedError struct {
	AgentID string
}

func (e *AuthFailedError) Error() string {
	return "authentication failed for agent " + e.AgentID
}

// PresenceReader is the slice of the hub the coordinator reads.
type PresenceReader interface {
	ReadScoped(scope domain.ScopeSet) []domain.PresenceRecord
	Count(scope domain.ScopeSet, pred func(domain.PresenceRecord) bool) int
}

// AgentStatus is the read-only answer to "is this agent logged in".
type AgentStatus struct {
	AgentID      string     `json:"agentId"`
	Active       bool       `json:"active"`
	LastOpenedAt *time.Time `json:"lastOpenedAt,omitempty"`
}

// PresenceView is a viewer-scoped presence snapshot.
type PresenceView struct {
	ViewerID  string                  `json:"viewerId"`
	Records   []domain.PresenceRecord `json:"records"`
	BusyCount int                     `json:"busyCount"`
}

// Coordinator exposes the login, logout, status, and presence operations.
type Coordinator struct {
	gatekeeper *session.Gatekeeper
	dir        directory.Directory
	resolver   *directory.Resolver
	hub        PresenceReader
	creds      CredentialChecker
	log        *logging.Logger
}

// New wires a coordinator. creds may be nil, which behaves like AllowAll.
func New(gk *session.Gatekeeper, dir directory.Directory, resolver *directory.Resolver, hub PresenceReader, creds CredentialChecker, log *logging.Logger) *Coordinator {
	if creds == nil {
		creds = AllowAll{}
	}
	return &Coordinator{
		gatekeeper: gk,
		dir:        dir,
		resolver:   resolver,
		hub:        hub,
		creds:      creds,
		log:        log.Sub("coordinator"),
	}
}

// Login verifies the agent exists and their credentials hold, then claims
// an exclusive session. Returns *domain.UnknownAgentError,
// *AuthFailedError, or *domain.AlreadyActiveError on the respective
// failures.
func (c *Coordinator) Login(ctx context.Context, agentID, secret string) (domain.Session, error) {
	agent, err := c.dir.GetAgent(ctx, agentID)
	if err != nil {
		return domain.Session{}, err
	}

	ok, err := c.creds.Check(ctx, agent.ID, secret)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		c.log.Warn().Str("agent", agent.ID).Msg("login denied, bad credentials")
		return domain.Session{}, &AuthFailedError{AgentID: agent.ID}
	}

	// Claim under the canonical directory ID so two spellings of the same
	// agent cannot hold two sessions.
	return c.gatekeeper.TryOpen(ctx, agent.ID)
}

// Logout closes the agent's open session. Returns domain.ErrNoActiveSession
// when there is nothing to close.
func (c *Coordinator) Logout(ctx context.Context, agentID string) (domain.Session, error) {
	agent, err := c.dir.GetAgent(ctx, agentID)
	if err != nil {
		return domain.Session{}, err
	}
	return c.gatekeeper.Close(ctx, agent.ID)
}

// ForceLogout closes an agent's session on behalf of an administrator. Same
// semantics as Logout; the distinct entry point exists for audit logging.
func (c *Coordinator) ForceLogout(ctx context.Context, agentID, adminID string) (domain.Session, error) {
	agent, err := c.dir.GetAgent(ctx, agentID)
	if err != nil {
		return domain.Session{}, err
	}
	sess, err := c.gatekeeper.Close(ctx, agent.ID)
	if err != nil {
		return domain.Session{}, err
	}
	c.log.Info().
		Str("agent", agent.ID).
		Str("admin", adminID).
		Str("session", sess.ID).
		Msg("session force-closed")
	return sess, nil
}

// Status reports whether the agent is logged in and when their most recent
// session opened. Read-only; authorization decisions never consult it.
func (c *Coordinator) Status(ctx context.Context, agentID string) (AgentStatus, error) {
	agent, err := c.dir.GetAgent(ctx, agentID)
	if err != nil {
		return AgentStatus{}, err
	}

	active, last, err := c.gatekeeper.IsActive(ctx, agent.ID)
	if err != nil {
		return AgentStatus{}, err
	}

	st := AgentStatus{AgentID: agent.ID, Active: active}
	if last != nil {
		opened := last.OpenedAt
		st.LastOpenedAt = &opened
	}
	return st, nil
}

// Presence returns the viewer's scoped presence snapshot, ordered by agent
// ID, plus the number of busy agents in scope.
func (c *Coordinator) Presence(ctx context.Context, viewerID string) (PresenceView, error) {
	scope, err := c.resolver.ResolveScope(ctx, viewerID)
	if err != nil {
		return PresenceView{}, err
	}

	view := PresenceView{
		ViewerID: viewerID,
		Records:  c.hub.ReadScoped(scope),
		BusyCount: c.hub.Count(scope, func(r domain.PresenceRecord) bool {
			return r.Status == domain.StatusBusy
		}),
	}
	return view, nil
}
