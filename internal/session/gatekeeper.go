// Package session enforces exclusive agent login. The Gatekeeper is the
// sole writer of session state; every other component reads through it.
package session

import (
	"context"
	"errors"

	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
)

// Store is the durable session record the gatekeeper drives. TryOpen must
// be an atomic claim: of any number of concurrent calls for one agent,
// exactly one succeeds and the rest fail with *domain.AlreadyActiveError.
type Store interface {
	TryOpen(ctx context.Context, agentID string) (domain.Session, error)
	Close(ctx context.Context, agentID string) (domain.Session, error)
	ActiveSession(ctx context.Context, agentID string) (*domain.Session, error)
	History(ctx context.Context, agentID string) ([]domain.Session, error)
	OpenAgentIDs(ctx context.Context) ([]string, error)
}

// StatusNotifier receives asynchronous login/logout notifications, typically
// to propagate routing status into the telephony control plane. A notifier
// failure never affects session state.
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, agentID string, status domain.RoutingStatus)
}

// Gatekeeper is the authorization choke-point for login and logout.
type Gatekeeper struct {
	store    Store
	notifier StatusNotifier
	log      *logging.Logger
}

// NewGatekeeper creates a gatekeeper over the given store. notifier may be
// nil when no telephony propagation is wanted (tests, dry runs).
func NewGatekeeper(store Store, notifier StatusNotifier, log *logging.Logger) *Gatekeeper {
	return &Gatekeeper{
		store:    store,
		notifier: notifier,
		log:      log.Sub("session"),
	}
}

// TryOpen claims a new session for the agent. The telephony notification is
// dispatched only after the claim is durably committed, and the caller is
// never blocked on it.
func (g *Gatekeeper) TryOpen(ctx context.Context, agentID string) (domain.Session, error) {
	sess, err := g.store.TryOpen(ctx, agentID)
	if err != nil {
		var active *domain.AlreadyActiveError
		if errors.As(err, &active) {
			g.log.Debug().
				Str("agent", agentID).
				Str("existingSession", active.Existing.ID).
				Msg("login rejected, session already active")
		}
		return domain.Session{}, err
	}

	g.log.Info().
		Str("agent", agentID).
		Str("session", sess.ID).
		Msg("session opened")

	g.notify(ctx, agentID, domain.StatusAvailable)
	return sess, nil
}

// Close ends the agent's open session. Closing with no open session returns
// domain.ErrNoActiveSession so callers can detect double-logout.
func (g *Gatekeeper) Close(ctx context.Context, agentID string) (domain.Session, error) {
	sess, err := g.store.Close(ctx, agentID)
	if err != nil {
		return domain.Session{}, err
	}

	g.log.Info().
		Str("agent", agentID).
		Str("session", sess.ID).
		Dur("duration", sess.Duration(*sess.ClosedAt)).
		Msg("session closed")

	g.notify(ctx, agentID, domain.StatusOffline)
	return sess, nil
}

// IsActive reports whether the agent has an open session, plus the most
// recent session if any. Read-only: dashboards use it, authorization never
// does (authorization goes through TryOpen).
func (g *Gatekeeper) IsActive(ctx context.Context, agentID string) (bool, *domain.Session, error) {
	open, err := g.store.ActiveSession(ctx, agentID)
	if err != nil {
		return false, nil, err
	}
	if open != nil {
		return true, open, nil
	}

	hist, err := g.store.History(ctx, agentID)
	if err != nil {
		return false, nil, err
	}
	if len(hist) == 0 {
		return false, nil, nil
	}
	last := hist[len(hist)-1]
	return false, &last, nil
}

// OpenAgentIDs returns the agents that currently hold an open session.
func (g *Gatekeeper) OpenAgentIDs(ctx context.Context) ([]string, error) {
	return g.store.OpenAgentIDs(ctx)
}

// notify dispatches the status change without blocking the caller. The
// notification outlives the request context: a login that already committed
// must still reach the switch even if the HTTP request is gone.
func (g *Gatekeeper) notify(ctx context.Context, agentID string, status domain.RoutingStatus) {
	if g.notifier == nil {
		return
	}
	go g.notifier.NotifyStatus(context.WithoutCancel(ctx), agentID, status)
}
