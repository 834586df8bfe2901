package agent

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned for operations on a session ID the agent
// does not know.
var ErrSessionNotFound = errors.New("session not found")

// Client is the conversational agent surface the HTTP layer talks to.
//
// CreateTurn returns a channel of TurnEvents that is closed when the turn is
// finished. The turn runs with the passed context: tool calls issued while
// processing the turn see exactly the values installed into that context,
// which is how per-request credentials reach the Prometheus tools.
type Client interface {
	CreateSession(ctx context.Context, name string) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CreateTurn(ctx context.Context, sessionID, message string) (<-chan TurnEvent, error)
}
