package mcp

import "encoding/json"

// Wire protocol constants. The stdio channel speaks newline-delimited
// JSON-RPC 2.0; the HTTP channel uses the conventional /health, /tools and
// /tools/{name} paths.
const (
	jsonrpcVersion  = "2.0"
	protocolVersion = "2025-06-18"
	clientID        = "mcpwire"

	methodInitialize = "initialize"
	methodListTools  = "tools/list"
	methodCallTool   = "tools/call"

	healthPath = "/health"
	toolsPath  = "/tools"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int64           `json:"id"`
}

type initializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      clientInfo `json:"clientInfo"`
}

type clientInfo struct {
	Name string `json:"name"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// wireTool is the tool shape both transports return from discovery.
type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Version     string         `json:"version,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type toolListResult struct {
	Tools []wireTool `json:"tools"`
}

// callResult is the invocation response envelope: {"result": <payload>}.
type callResult struct {
	Result any `json:"result"`
}

func (t wireTool) descriptor(serverName string) ToolDescriptor {
	return ToolDescriptor{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
		ServerName:  serverName,
		Version:     t.Version,
		Metadata:    t.Metadata,
	}
}
