package mcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConfigValidate(t *testing.T) {
	valid := ServerConfig{
		Name:          "files",
		Transport:     TransportStdio,
		Command:       "npx",
		Args:          []string{"-y", "@modelcontextprotocol/server-filesystem"},
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		field  string
	}{
		{
			name:   "empty name",
			mutate: func(c *ServerConfig) { c.Name = "" },
			field:  "name",
		},
		{
			name:   "stdio without command",
			mutate: func(c *ServerConfig) { c.Command = "" },
			field:  "command",
		},
		{
			name: "http without url",
			mutate: func(c *ServerConfig) {
				c.Transport = TransportHTTP
				c.URL = ""
			},
			field: "url",
		},
		{
			name:   "zero timeout",
			mutate: func(c *ServerConfig) { c.Timeout = 0 },
			field:  "timeout",
		},
		{
			name:   "negative retry attempts",
			mutate: func(c *ServerConfig) { c.RetryAttempts = -1 },
			field:  "retry_attempts",
		},
		{
			name:   "unknown transport",
			mutate: func(c *ServerConfig) { c.Transport = "grpc" },
			field:  "transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestServerConfigDefaultTransport(t *testing.T) {
	cfg := ServerConfig{
		Name:          "files",
		Command:       "echo",
		Timeout:       time.Second,
		RetryAttempts: 1,
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, TransportStdio, cfg.kind())
}

func TestToolInvocationRequestValidate(t *testing.T) {
	req := ToolInvocationRequest{ToolName: "read_file", Arguments: map[string]any{"path": "a.txt"}}
	require.NoError(t, req.Validate())

	req.ToolName = ""
	err := req.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "tool_name", verr.Field)
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "error", StatusError.String())
}
