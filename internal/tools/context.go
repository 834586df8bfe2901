package tools

import (
	"context"
	"sync"

	"persai/internal/api"
	"persai/internal/auth"
)

// ToolContext carries the per-request state that agent tools need: the
// resolved Prometheus endpoint and the request's auth info.
//
// One ToolContext is created per turn, installed into the turn's
// context.Context, and shared by every tool invocation descended from it,
// including ones running on other goroutines. The auth field is mutable
// behind a lock: when a tool call refreshes the token, sibling tool calls in
// the same turn observe the fresh one. Unrelated requests carry distinct
// ToolContext pointers and cannot observe each other's state.
type ToolContext struct {
	// PrometheusURL is the fully qualified endpoint the tools must call.
	PrometheusURL string

	mu   sync.RWMutex
	auth *auth.Info
}

// NewToolContext creates a ToolContext for one turn.
func NewToolContext(prometheusURL string, info *auth.Info) *ToolContext {
	return &ToolContext{
		PrometheusURL: prometheusURL,
		auth:          info,
	}
}

// Auth returns the current auth info for this turn.
func (tc *ToolContext) Auth() *auth.Info {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.auth
}

// SetAuth replaces the turn's auth info after a refresh. The replacement is
// visible to every subsequent Auth call within the turn.
func (tc *ToolContext) SetAuth(info *auth.Info) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.auth = info
}

type toolContextKey struct{}

// WithToolContext returns a context carrying tc. The turn handler calls this
// once, immediately before handing the context to the agent.
func WithToolContext(ctx context.Context, tc *ToolContext) context.Context {
	return context.WithValue(ctx, toolContextKey{}, tc)
}

// FromContext returns the ToolContext installed by the turn handler. A tool
// running without one is a wiring bug, not a user error, so the failure is a
// ConfigurationError.
func FromContext(ctx context.Context) (*ToolContext, error) {
	tc, ok := ctx.Value(toolContextKey{}).(*ToolContext)
	if !ok || tc == nil {
		return nil, api.NewConfigurationError("no tool context configured for this call")
	}
	return tc, nil
}
