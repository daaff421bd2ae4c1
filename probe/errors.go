package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrProbeTimeout indicates the probe exceeded the target's timeout.
	ErrProbeTimeout = errors.New("probe: timeout")

	// ErrProbeConnection indicates the target could not be reached.
	ErrProbeConnection = errors.New("probe: connection failed")

	// ErrProbeProtocol indicates an unexpected status or payload.
	ErrProbeProtocol = errors.New("probe: protocol error")

	// ErrNoChecker indicates no checker is registered for a target.
	ErrNoChecker = errors.New("probe: no checker for target")
)

// classifyTransport wraps a transport-level error into the package
// taxonomy. Timeouts are distinguished from connection failures; both
// count identically toward breaker thresholds.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProbeTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrProbeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProbeConnection, err)
}

// protocolError creates an ErrProbeProtocol with context.
func protocolError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProbeProtocol, fmt.Sprintf(format, args...))
}
