package tools

import (
	"context"

	"github.com/mcpwire/mcpwire/pkg/mcp"
)

// Client is the slice of the transport layer the executor needs.
// *mcp.Client satisfies it.
type Client interface {
	GetTool(name, serverName string) (mcp.ToolDescriptor, bool)
	ExecuteTool(ctx context.Context, req mcp.ToolInvocationRequest) *mcp.ToolInvocationResult
}
