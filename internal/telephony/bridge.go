// Package telephony drives the external call-routing control plane over a
// line-oriented, single-command-per-connection protocol.
package telephony

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
)

// connState tracks the per-call protocol state machine:
// Disconnected -> Connecting -> Authenticating -> Ready -> CommandSent ->
// Acked | Failed -> Disconnected.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateAuthenticating
	stateReady
	stateCommandSent
	stateAcked
	stateFailed
)

func (s connState) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateConnecting:
		return "connecting"
	case stateAuthenticating:
		return "authenticating"
	case stateReady:
		return "ready"
	case stateCommandSent:
		return "command_sent"
	case stateAcked:
		return "acked"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Dialer opens the control-plane socket. Injected for tests.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// Alerter receives non-retryable configuration faults (auth or command
// rejections). The default implementation logs at error level; deployments
// can route this to a pager instead.
type Alerter interface {
	Alert(op string, err error)
}

// LogAlerter logs alerts through the standard logger.
type LogAlerter struct {
	Log *logging.Logger
}

func (a LogAlerter) Alert(op string, err error) {
	a.Log.Error().Str("op", op).Err(err).Msg("telephony configuration fault, operator attention required")
}

// Bridge issues status commands against the telephony control plane. Each
// command opens a fresh connection, authenticates, sends exactly one
// command, and disconnects: connection overhead is traded for protocol
// simplicity and fault isolation.
type Bridge struct {
	addr         string
	authToken    string
	dialTimeout  time.Duration
	replyTimeout time.Duration
	maxAttempts  int
	backoff      backoffConfig

	codec Codec
	dial  Dialer
	alert Alerter
	log   *logging.Logger
	rng   func() float64
}

// BridgeOption configures optional Bridge collaborators.
type BridgeOption func(*Bridge)

// WithDialer overrides the socket dialer.
func WithDialer(d Dialer) BridgeOption {
	return func(b *Bridge) { b.dial = d }
}

// WithCodec overrides the wire codec.
func WithCodec(c Codec) BridgeOption {
	return func(b *Bridge) { b.codec = c }
}

// WithAlerter overrides the configuration-fault alert channel.
func WithAlerter(a Alerter) BridgeOption {
	return func(b *Bridge) { b.alert = a }
}

// NewBridge creates a bridge from telephony configuration.
func NewBridge(cfg config.TelephonyConfig, log *logging.Logger, opts ...BridgeOption) *Bridge {
	blog := log.Sub("telephony")
	b := &Bridge{
		addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		authToken:    cfg.AuthToken,
		dialTimeout:  time.Duration(cfg.DialTimeoutMs) * time.Millisecond,
		replyTimeout: time.Duration(cfg.ReplyTimeoutMs) * time.Millisecond,
		maxAttempts:  cfg.Retry.MaxAttempts,
		backoff: backoffConfig{
			Initial:    time.Duration(cfg.Retry.InitialMs) * time.Millisecond,
			Multiplier: cfg.Retry.Multiplier,
			Jitter:     0.2,
			Max:        time.Duration(cfg.Retry.MaxMs) * time.Millisecond,
		},
		codec: LineCodec{},
		alert: LogAlerter{Log: blog},
		log:   blog,
		rng:   rand.Float64,
	}
	b.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}
	if b.maxAttempts < 1 {
		b.maxAttempts = 1
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetStatus sets the routing status for the given address. Transient faults
// (Unreachable, Timeout) are retried with exponential backoff up to the
// configured attempt ceiling; rejections are alerted and returned at once.
func (b *Bridge) SetStatus(ctx context.Context, addr domain.RoutingAddress, status domain.RoutingStatus) error {
	command := b.codec.SetStatus(addr, status)

	var lastErr error
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := b.backoff.nextDelay(attempt-1, b.rng())
			b.log.Debug().
				Str("addr", addr.String()).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("retrying status command")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
		}

		_, err := b.exchange(ctx, command)
		if err == nil {
			b.log.Info().
				Str("addr", addr.String()).
				Str("status", string(status)).
				Msg("routing status set")
			return nil
		}
		if !retryable(err) {
			b.alert.Alert("set_status", err)
			return err
		}
		lastErr = err
	}

	b.log.Warn().
		Str("addr", addr.String()).
		Str("status", string(status)).
		Int("attempts", b.maxAttempts).
		Err(lastErr).
		Msg("status command exhausted retries")
	return lastErr
}

// QueryStatus probes the current routing status for the address. Probes are
// single-shot: the poller re-samples on its next cycle, so retrying here
// would only pile load onto a struggling switch.
func (b *Bridge) QueryStatus(ctx context.Context, addr domain.RoutingAddress) (domain.RoutingStatus, error) {
	rep, err := b.exchange(ctx, b.codec.QueryStatus(addr))
	if err != nil {
		return domain.StatusUnknown, err
	}
	return rep.Status, nil
}

// exchange runs one full protocol conversation: connect, authenticate,
// send the command, await the acknowledgment, disconnect. Every transition
// is bounded by a deadline; a blown deadline tears down the socket.
func (b *Bridge) exchange(ctx context.Context, command string) (Reply, error) {
	state := stateConnecting
	b.log.Debug().Str("state", state.String()).Str("addr", b.addr).Msg("opening control-plane connection")

	dialCtx, cancel := context.WithTimeout(ctx, b.dialTimeout)
	defer cancel()
	conn, err := b.dial(dialCtx, "tcp", b.addr)
	if err != nil {
		return Reply{}, b.fail(state, classifyNetErr(ctx, err))
	}
	defer conn.Close()

	// Abandon the exchange if the caller gives up: closing the socket
	// unblocks any pending read, so a cancelled probe never lingers.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchdogDone:
		}
	}()

	reader := bufio.NewReader(conn)

	state = stateAuthenticating
	rep, err := b.roundTrip(ctx, conn, reader, b.codec.Auth(b.authToken))
	if err != nil {
		return Reply{}, b.fail(state, err)
	}
	if !rep.OK {
		return Reply{}, b.fail(state, &AuthRejectedError{Reason: rep.Reason})
	}

	state = stateCommandSent
	rep, err = b.roundTrip(ctx, conn, reader, command)
	if err != nil {
		return Reply{}, b.fail(state, err)
	}
	if !rep.OK {
		return Reply{}, b.fail(state, &CommandRejectedError{Command: command, Reason: rep.Reason})
	}

	b.log.Debug().Str("state", stateAcked.String()).Msg("command acknowledged")
	return rep, nil
}

// roundTrip writes one line and reads one reply line, both under the reply
// deadline.
func (b *Bridge) roundTrip(ctx context.Context, conn net.Conn, reader *bufio.Reader, line string) (Reply, error) {
	deadline := time.Now().Add(b.replyTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return Reply{}, classifyNetErr(ctx, err)
	}

	raw, err := reader.ReadString('\n')
	if err != nil {
		return Reply{}, classifyNetErr(ctx, err)
	}
	return b.codec.ParseReply(raw)
}

func (b *Bridge) fail(state connState, err error) error {
	b.log.Debug().
		Str("state", state.String()).
		Str("next", stateFailed.String()).
		Err(err).
		Msg("control-plane exchange failed")
	return err
}

// classifyNetErr maps socket errors onto the bridge's fault taxonomy.
func classifyNetErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
