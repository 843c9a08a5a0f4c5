package mcp

import (
	"time"
)

// TransportKind selects the channel carrying protocol messages.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// ConnectionStatus represents the lifecycle of a managed connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

func (s ConnectionStatus) String() string { return string(s) }

// ServerConfig describes one tool server endpoint. It is immutable once
// validated; Validate must pass before the config is handed to a Client.
type ServerConfig struct {
	Name          string            `toml:"name" json:"name" mapstructure:"name"`
	Description   string            `toml:"description" json:"description" mapstructure:"description"`
	Transport     TransportKind     `toml:"transport" json:"transport" mapstructure:"transport"`
	Command       string            `toml:"command" json:"command,omitempty" mapstructure:"command"`
	Args          []string          `toml:"args" json:"args,omitempty" mapstructure:"args"`
	URL           string            `toml:"url" json:"url,omitempty" mapstructure:"url"`
	WorkingDir    string            `toml:"working_dir" json:"working_dir,omitempty" mapstructure:"working_dir"`
	Env           map[string]string `toml:"env" json:"env,omitempty" mapstructure:"env"`
	Headers       map[string]string `toml:"headers" json:"headers,omitempty" mapstructure:"headers"`
	Timeout       time.Duration     `toml:"timeout" json:"timeout" mapstructure:"timeout"`
	RetryAttempts int               `toml:"retry_attempts" json:"retry_attempts" mapstructure:"retry_attempts"`
	AutoConnect   bool              `toml:"auto_connect" json:"auto_connect" mapstructure:"auto_connect"`
	Enabled       bool              `toml:"enabled" json:"enabled" mapstructure:"enabled"`
	Metadata      map[string]any    `toml:"metadata" json:"metadata,omitempty" mapstructure:"metadata"`
}

// Validate checks the invariants the rest of the layer relies on.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	switch c.Transport {
	case TransportStdio, "":
		if c.Command == "" {
			return &ValidationError{Field: "command", Reason: "required for stdio servers"}
		}
	case TransportHTTP:
		if c.URL == "" {
			return &ValidationError{Field: "url", Reason: "required for http servers"}
		}
	default:
		return &ValidationError{Field: "transport", Reason: "must be stdio or http"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Reason: "must be positive"}
	}
	if c.RetryAttempts < 0 {
		return &ValidationError{Field: "retry_attempts", Reason: "must not be negative"}
	}
	return nil
}

// kind returns the effective transport, defaulting to stdio like the
// common mcpServers.json convention.
func (c *ServerConfig) kind() TransportKind {
	if c.Transport == "" {
		return TransportStdio
	}
	return c.Transport
}

// ToolDescriptor describes one discovered tool. ServerName is a
// back-reference by key; the owning connection controls the lifetime.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
	ServerName  string         `json:"server_name"`
	Version     string         `json:"version,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ToolInvocationRequest is the value object handed to ExecuteTool.
// A zero Timeout means "use the owning server's configured timeout".
type ToolInvocationRequest struct {
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
	ServerName string         `json:"server_name,omitempty"`
	Timeout    time.Duration  `json:"timeout,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate checks the request invariants.
func (r *ToolInvocationRequest) Validate() error {
	if r.ToolName == "" {
		return &ValidationError{Field: "tool_name", Reason: "must not be empty"}
	}
	if r.Timeout < 0 {
		return &ValidationError{Field: "timeout", Reason: "must not be negative"}
	}
	return nil
}

// ToolInvocationResult is the uniform result shape. Exactly one of
// {Result may be set, Error must be set} holds per the Success flag.
type ToolInvocationResult struct {
	ToolName string         `json:"tool_name"`
	Success  bool           `json:"success"`
	Result   any            `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ConnectionInfo is a point-in-time snapshot of one managed connection.
type ConnectionInfo struct {
	Config      ServerConfig     `json:"config"`
	Status      ConnectionStatus `json:"status"`
	ConnectedAt time.Time        `json:"connected_at,omitzero"`
	LastError   string           `json:"last_error,omitempty"`
	ToolCount   int              `json:"tool_count"`
}

// ClientStatistics aggregates counters across all servers and calls.
type ClientStatistics struct {
	TotalServers         int            `json:"total_servers"`
	ConnectedServers     int            `json:"connected_servers"`
	TotalTools           int            `json:"total_tools"`
	ToolsByServer        map[string]int `json:"tools_by_server"`
	TotalCalls           int64          `json:"total_calls"`
	SuccessfulCalls      int64          `json:"successful_calls"`
	FailedCalls          int64          `json:"failed_calls"`
	AverageExecutionTime time.Duration  `json:"average_execution_time"`
}
