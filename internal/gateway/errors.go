package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured = errors.New("gateway is not configured")
	ErrCardDisabled  = errors.New("card payments are disabled for this merchant")

	// ErrGatewayUnreachable means transport-level failure: timeouts, refused
	// connections, 5xx responses. It is the only error that moves the
	// orchestrator to the next checkout strategy.
	ErrGatewayUnreachable = errors.New("gateway unreachable")

	// ErrSessionExpired is returned by the session store when the checkout's
	// TTL has elapsed. The payment attempt is terminal at that point.
	ErrSessionExpired = errors.New("checkout session expired")
)

// RejectedError is a definitive refusal from the gateway (HTTP 4xx). It
// never triggers a retry or a fallback.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway rejected request with status %d: %s", e.StatusCode, e.Body)
}
