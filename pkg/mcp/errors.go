package mcp

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrServerNotFound indicates the server name is not registered
	ErrServerNotFound = errors.New("server not found")

	// ErrNotConnected indicates the server is registered but has no live connection
	ErrNotConnected = errors.New("server not connected")

	// ErrToolNotFound indicates no connected server advertises the tool
	ErrToolNotFound = errors.New("tool not found")
)

// ValidationError reports a malformed config or request. It is fail-fast:
// no partially constructed object is ever handed back alongside one.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// ConnectionError reports a handshake that failed after exhausting the
// configured attempts. It carries the attempt count and the last cause.
type ConnectionError struct {
	Server   string
	Attempts int
	Cause    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s after %d attempts: %v", e.Server, e.Attempts, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ToolError reports a discovery or low-level invocation failure.
type ToolError struct {
	Server string
	Tool   string
	Op     string
	Cause  error
}

func (e *ToolError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s failed for tool %s on server %s: %v", e.Op, e.Tool, e.Server, e.Cause)
	}
	return fmt.Sprintf("%s failed on server %s: %v", e.Op, e.Server, e.Cause)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// TimeoutError reports a bounded operation that expired. Transports return
// it so callers can render the conventional "Timeout after Ns" message.
type TimeoutError struct {
	Op      string
	Seconds int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timeout after %ds", e.Seconds)
}

// IsTimeout reports whether err is, or wraps, a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
