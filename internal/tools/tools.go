package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"persai/internal/api"
	"persai/internal/auth"
	"persai/pkg/logging"
)

// Tool names as exposed to the agent.
const (
	ToolListMetrics       = "list_metrics"
	ToolExecuteRangeQuery = "execute_range_query"
)

// Provider builds the Prometheus tools handed to the agent. Each tool
// invocation reads the active ToolContext to find out which endpoint to
// call and with which credentials; a missing context is a wiring bug and
// fails the call with a ConfigurationError.
type Provider struct {
	refresher *auth.Refresher
}

// NewProvider creates a tool provider whose clients refresh tokens through
// the given refresher.
func NewProvider(refresher *auth.Refresher) *Provider {
	return &Provider{refresher: refresher}
}

// Tools returns the Prometheus tool set for registration with the agent.
func (p *Provider) Tools() []mcpserver.ServerTool {
	return []mcpserver.ServerTool{
		{
			Tool: mcp.Tool{
				Name:        ToolListMetrics,
				Description: "List all available metrics in Prometheus. Returns metric names as strings.",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{},
				},
			},
			Handler: p.handleListMetrics,
		},
		{
			Tool: mcp.Tool{
				Name: ToolExecuteRangeQuery,
				Description: "Execute a PromQL range query. Provide either an explicit start/end pair " +
					"(RFC3339 or Unix timestamps) or a relative duration such as '1h', '30m', '1d' or '1w'. " +
					"With neither, the query covers the last hour.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "PromQL query string",
						},
						"step": map[string]interface{}{
							"type":        "string",
							"description": "Query resolution step width (e.g. '15s', '1m', '1h')",
						},
						"start": map[string]interface{}{
							"type":        "string",
							"description": "Start time as RFC3339 or Unix timestamp; requires end",
						},
						"end": map[string]interface{}{
							"type":        "string",
							"description": "End time as RFC3339 or Unix timestamp; requires start",
						},
						"duration": map[string]interface{}{
							"type":        "string",
							"description": "Relative lookback ending now (e.g. '1h', '30m', '1d', '1w'); mutually exclusive with start/end",
						},
					},
					Required: []string{"query", "step"},
				},
			},
			Handler: p.handleExecuteRangeQuery,
		},
	}
}

// clientFromContext builds a PrometheusClient for the current turn.
func (p *Provider) clientFromContext(ctx context.Context) (*PrometheusClient, error) {
	tc, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if tc.PrometheusURL == "" {
		return nil, api.NewConfigurationError("no Prometheus URL configured in context")
	}
	return NewPrometheusClient(tc.PrometheusURL, tc.Auth(), p.refresher), nil
}

func (p *Provider) handleListMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := p.clientFromContext(ctx)
	if err != nil {
		return nil, err
	}

	metrics, err := client.ListMetrics(ctx)
	if err != nil {
		logging.Error("Tools", err, "list_metrics failed")
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonToolResult(metrics)
}

func (p *Provider) handleExecuteRangeQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := p.clientFromContext(ctx)
	if err != nil {
		return nil, err
	}

	args := requestArguments(req)

	query := stringArg(args, "query")
	step := stringArg(args, "step")
	if query == "" || step == "" {
		return mcp.NewToolResultError("'query' and 'step' arguments are required"), nil
	}

	start, end, err := ResolveTimeRange(
		stringArg(args, "start"),
		stringArg(args, "end"),
		stringArg(args, "duration"),
		time.Now(),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	logging.Info("Tools", "Executing range query %q start=%s end=%s step=%s", query, start, end, step)

	result, err := client.ExecuteRangeQuery(ctx, query, start, end, step)
	if err != nil {
		logging.Error("Tools", err, "execute_range_query failed")
		return mcp.NewToolResultError(err.Error()), nil
	}

	logging.Info("Tools", "Range query completed with result type %s", result.ResultType)
	return jsonToolResult(result)
}

// requestArguments extracts the argument map from an MCP request.
func requestArguments(req mcp.CallToolRequest) map[string]interface{} {
	if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
		return argsMap
	}
	return map[string]interface{}{}
}

func stringArg(args map[string]interface{}, name string) string {
	value, _ := args[name].(string)
	return value
}

func jsonToolResult(value interface{}) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
