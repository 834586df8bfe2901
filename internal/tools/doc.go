// Package tools implements the Prometheus tools exposed to the agent and
// the request-scoped context that feeds them.
//
// The interesting part is credential flow. Tool invocations for one turn
// may run concurrently, and any of them may find the access token near
// expiry. The ToolContext installed by the turn handler carries the turn's
// auth info behind a lock; when one tool call refreshes the token, the
// PrometheusClient writes the refreshed info back into the ToolContext, so
// the next tool call in the same turn starts from the fresh token instead
// of racing into its own refresh. The context travels through the standard
// context.Context chain, so it reaches every invocation causally descended
// from the turn handler and nothing else.
package tools
