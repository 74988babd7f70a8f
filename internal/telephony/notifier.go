package telephony

import (
	"context"
	"time"

	"github.com/soyeahso/switchboard/internal/directory"
	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
)

// notifyTimeout bounds a whole notification, retries included. Session
// state is already committed by the time a notification runs, so there is
// no point chasing a dead switch forever; presence degrades to Unknown
// until the next successful poll instead.
const notifyTimeout = 30 * time.Second

// StatusSetter is the slice of the bridge the notifier needs.
type StatusSetter interface {
	SetStatus(ctx context.Context, addr domain.RoutingAddress, status domain.RoutingStatus) error
}

// Notifier propagates session open/close events into the control plane.
// It implements session.StatusNotifier. Failures are logged and dropped:
// the session-exclusivity invariant is independent of telephony
// reachability.
type Notifier struct {
	bridge StatusSetter
	dir    directory.Directory
	log    *logging.Logger
}

// NewNotifier creates a notifier that resolves routing addresses through
// the directory and applies them via the bridge.
func NewNotifier(bridge StatusSetter, dir directory.Directory, log *logging.Logger) *Notifier {
	return &Notifier{
		bridge: bridge,
		dir:    dir,
		log:    log.Sub("notifier"),
	}
}

// NotifyStatus is called by the gatekeeper after a committed open or close.
func (n *Notifier) NotifyStatus(ctx context.Context, agentID string, status domain.RoutingStatus) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	agent, err := n.dir.GetAgent(ctx, agentID)
	if err != nil {
		n.log.Warn().Str("agent", agentID).Err(err).Msg("cannot notify switch for unknown agent")
		return
	}

	if err := n.bridge.SetStatus(ctx, agent.Routing, status); err != nil {
		// Session state stands regardless; presence shows the gap until
		// the next successful poll.
		n.log.Warn().
			Str("agent", agentID).
			Str("addr", agent.Routing.String()).
			Str("status", string(status)).
			Err(err).
			Msg("status propagation failed, presence will lag")
	}
}
