package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// StandaloneTools returns the tool set bound to a fixed Prometheus endpoint,
// for serving over MCP to external clients. There is no per-request cookie
// flow in that mode, so every call gets a fresh unauthenticated ToolContext
// pointing at prometheusURL.
func (p *Provider) StandaloneTools(prometheusURL string) []mcpserver.ServerTool {
	tools := p.Tools()

	bound := make([]mcpserver.ServerTool, len(tools))
	for i, tool := range tools {
		handler := tool.Handler
		bound[i] = mcpserver.ServerTool{
			Tool: tool.Tool,
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				ctx = WithToolContext(ctx, NewToolContext(prometheusURL, nil))
				return handler(ctx, req)
			},
		}
	}
	return bound
}
