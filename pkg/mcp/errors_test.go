package mcp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ConnectionError{Server: "files", Attempts: 3, Cause: cause}

	assert.Equal(t, "failed to connect to files after 3 attempts: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestToolErrorUnwrap(t *testing.T) {
	err := &ToolError{Server: "files", Tool: "read_file", Op: "call", Cause: ErrNotConnected}
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Op: "tools/call", Seconds: 5}
	assert.Equal(t, "Timeout after 5s", err.Error())
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(&TimeoutError{Op: "x", Seconds: 1}))
	assert.True(t, IsTimeout(&ToolError{Server: "s", Cause: &TimeoutError{Op: "x", Seconds: 1}}))
	assert.False(t, IsTimeout(errors.New("connection refused")))
	assert.False(t, IsTimeout(nil))
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "name", Reason: "must not be empty"}
	require.Contains(t, err.Error(), "name")
	require.Contains(t, err.Error(), "must not be empty")
}
