package telephony

import (
	"errors"
	"fmt"
)

// Transient faults, retried with bounded backoff.
var (
	// ErrUnreachable means the control plane could not be reached or the
	// connection dropped mid-exchange.
	ErrUnreachable = errors.New("telephony control plane unreachable")

	// ErrTimeout means a protocol step exceeded its deadline. The socket
	// is torn down, never waited on.
	ErrTimeout = errors.New("telephony exchange timed out")
)

// AuthRejectedError means the control plane refused our credentials. This
// is a configuration fault: it is never retried and is routed to the
// operational alert channel.
type AuthRejectedError struct {
	Reason string
}

func (e *AuthRejectedError) Error() string {
	return fmt.Sprintf("telephony auth rejected: %s", e.Reason)
}

// CommandRejectedError means the control plane refused a well-delivered
// command (unknown extension, bad status token). Not retried; alerted.
type CommandRejectedError struct {
	Command string
	Reason  string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("telephony command rejected: %s (%s)", e.Command, e.Reason)
}

// retryable reports whether the fault is transient.
func retryable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout)
}
