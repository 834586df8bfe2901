package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persai/internal/config"
)

// fakeInference is a scripted OpenAI-compatible completion endpoint. Each
// request pops the next assistant message from the queue.
type fakeInference struct {
	server *httptest.Server

	mu        sync.Mutex
	requests  []chatRequest
	responses []chatMessage

	failWith int
}

func newFakeInference(t *testing.T, responses ...chatMessage) *fakeInference {
	f := &fakeInference{responses: responses}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, chatCompletionsPath, r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.requests = append(f.requests, req)
		if f.failWith != 0 {
			status := f.failWith
			f.mu.Unlock()
			w.WriteHeader(status)
			w.Write([]byte(`{"error": {"message": "inference unavailable"}}`))
			return
		}
		require.NotEmpty(t, f.responses, "unexpected completion request")
		next := f.responses[0]
		f.responses = f.responses[1:]
		f.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": next, "finish_reason": "stop"},
			},
		})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeInference) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeInference) lastRequest() chatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type ctxKey struct{}

// echoTool returns a stub tool that records the context value under ctxKey
// at call time.
func echoTool(seen *[]string) mcpserver.ServerTool {
	var mu sync.Mutex
	return mcpserver.ServerTool{
		Tool: mcp.Tool{
			Name:        "echo",
			Description: "Echo the given value.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"value": map[string]interface{}{"type": "string"},
				},
				Required: []string{"value"},
			},
		},
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if v, ok := ctx.Value(ctxKey{}).(string); ok {
				mu.Lock()
				*seen = append(*seen, v)
				mu.Unlock()
			}
			args, _ := req.Params.Arguments.(map[string]interface{})
			value, _ := args["value"].(string)
			return mcp.NewToolResultText("echo: " + value), nil
		},
	}
}

func newTestAgent(t *testing.T, inference *fakeInference, tools ...mcpserver.ServerTool) *Agent {
	t.Helper()
	a, err := New(config.AgentConfig{BaseURL: inference.server.URL}, tools, nil)
	require.NoError(t, err)
	return a
}

func collectEvents(t *testing.T, events <-chan TurnEvent) []TurnEvent {
	t.Helper()
	var collected []TurnEvent
	for event := range events {
		collected = append(collected, event)
	}
	return collected
}

func eventTypes(events []TurnEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Event
	}
	return types
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(config.AgentConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	inference := newFakeInference(t)
	a := newTestAgent(t, inference)
	ctx := context.Background()

	session, err := a.CreateSession(ctx, "chat")
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, "chat", session.SessionName)

	sessions, err := a.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.SessionID, sessions[0].SessionID)

	require.NoError(t, a.DeleteSession(ctx, session.SessionID))

	sessions, err = a.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	assert.ErrorIs(t, a.DeleteSession(ctx, session.SessionID), ErrSessionNotFound)
}

func TestCreateTurnUnknownSession(t *testing.T) {
	inference := newFakeInference(t)
	a := newTestAgent(t, inference)

	_, err := a.CreateTurn(context.Background(), "no-such-session", "hello")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCreateTurnTextOnly(t *testing.T) {
	inference := newFakeInference(t,
		chatMessage{Role: "assistant", Content: "CPU usage is nominal."},
	)
	a := newTestAgent(t, inference)

	session, err := a.CreateSession(context.Background(), "chat")
	require.NoError(t, err)

	events, err := a.CreateTurn(context.Background(), session.SessionID, "how is the cluster?")
	require.NoError(t, err)

	collected := collectEvents(t, events)
	assert.Equal(t, []string{EventTurnStart, EventText, EventTurnComplete}, eventTypes(collected))
	assert.Equal(t, "CPU usage is nominal.", collected[len(collected)-1].Text)

	// The request carries the system prompt and the user message.
	req := inference.lastRequest()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "how is the cluster?", req.Messages[1].Content)

	sessions, err := a.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sessions[0].TurnCount)
}

func TestCreateTurnWithToolCalls(t *testing.T) {
	inference := newFakeInference(t,
		chatMessage{
			Role: "assistant",
			ToolCalls: []toolCall{{
				ID:   "call-1",
				Type: "function",
				Function: functionCall{
					Name:      "echo",
					Arguments: `{"value": "hi"}`,
				},
			}},
		},
		chatMessage{Role: "assistant", Content: "done"},
	)

	var seen []string
	a := newTestAgent(t, inference, echoTool(&seen))

	session, err := a.CreateSession(context.Background(), "chat")
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "turn-scoped-value")
	events, err := a.CreateTurn(ctx, session.SessionID, "say hi")
	require.NoError(t, err)

	collected := collectEvents(t, events)
	assert.Equal(t,
		[]string{EventTurnStart, EventToolCall, EventToolResult, EventText, EventTurnComplete},
		eventTypes(collected))

	assert.Equal(t, "echo", collected[1].ToolName)
	assert.Equal(t, "echo: hi", collected[2].ToolResult)
	assert.False(t, collected[2].ToolError)

	// The tool ran with the turn's context.
	assert.Equal(t, []string{"turn-scoped-value"}, seen)

	// The second completion request carries the tool result message.
	req := inference.lastRequest()
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call-1", last.ToolCallID)
	assert.Equal(t, "echo: hi", last.Content)

	// Tools were advertised to the model.
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "echo", req.Tools[0].Function.Name)
}

func TestCreateTurnUnknownTool(t *testing.T) {
	inference := newFakeInference(t,
		chatMessage{
			Role: "assistant",
			ToolCalls: []toolCall{{
				ID:       "call-1",
				Type:     "function",
				Function: functionCall{Name: "bogus", Arguments: `{}`},
			}},
		},
		chatMessage{Role: "assistant", Content: "giving up"},
	)
	a := newTestAgent(t, inference)

	session, err := a.CreateSession(context.Background(), "chat")
	require.NoError(t, err)

	events, err := a.CreateTurn(context.Background(), session.SessionID, "try something")
	require.NoError(t, err)

	collected := collectEvents(t, events)
	var result *TurnEvent
	for i := range collected {
		if collected[i].Event == EventToolResult {
			result = &collected[i]
		}
	}
	require.NotNil(t, result)
	assert.True(t, result.ToolError)
	assert.Contains(t, result.ToolResult, "unknown tool")
}

func TestCreateTurnInferenceFailure(t *testing.T) {
	inference := newFakeInference(t)
	inference.failWith = http.StatusInternalServerError

	a := newTestAgent(t, inference)

	session, err := a.CreateSession(context.Background(), "chat")
	require.NoError(t, err)

	events, err := a.CreateTurn(context.Background(), session.SessionID, "hello")
	require.NoError(t, err)

	collected := collectEvents(t, events)
	last := collected[len(collected)-1]
	assert.Equal(t, EventError, last.Event)
	assert.NotEmpty(t, last.Error)

	// Failed turns are not committed to the session history.
	sessions, err := a.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sessions[0].TurnCount)
}

func TestTurnHistoryAccumulates(t *testing.T) {
	inference := newFakeInference(t,
		chatMessage{Role: "assistant", Content: "first answer"},
		chatMessage{Role: "assistant", Content: "second answer"},
	)
	a := newTestAgent(t, inference)

	session, err := a.CreateSession(context.Background(), "chat")
	require.NoError(t, err)

	events, err := a.CreateTurn(context.Background(), session.SessionID, "first question")
	require.NoError(t, err)
	collectEvents(t, events)

	events, err = a.CreateTurn(context.Background(), session.SessionID, "second question")
	require.NoError(t, err)
	collectEvents(t, events)

	require.Equal(t, 2, inference.requestCount())

	// system + first question + first answer + second question
	req := inference.lastRequest()
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "first answer", req.Messages[2].Content)
	assert.Equal(t, "second question", req.Messages[3].Content)
}

func TestReconfigureAppliesToNextTurn(t *testing.T) {
	inference := newFakeInference(t,
		chatMessage{Role: "assistant", Content: "first answer"},
		chatMessage{Role: "assistant", Content: "second answer"},
	)
	a := newTestAgent(t, inference)

	session, err := a.CreateSession(context.Background(), "chat")
	require.NoError(t, err)

	events, err := a.CreateTurn(context.Background(), session.SessionID, "hello")
	require.NoError(t, err)
	collectEvents(t, events)
	assert.Equal(t, "gpt-4o-mini", inference.lastRequest().Model)

	require.NoError(t, a.Reconfigure(config.AgentConfig{
		BaseURL:      inference.server.URL,
		Models:       []config.ModelConfig{{ModelID: "granite-3.3"}},
		SystemPrompt: "You answer in haiku.",
	}))

	events, err = a.CreateTurn(context.Background(), session.SessionID, "again")
	require.NoError(t, err)
	collectEvents(t, events)

	req := inference.lastRequest()
	assert.Equal(t, "granite-3.3", req.Model, "reloaded model must be used on the next turn")
	assert.Equal(t, "You answer in haiku.", req.Messages[0].Content)
}

func TestReconfigureRejectsInvalidSettings(t *testing.T) {
	inference := newFakeInference(t, chatMessage{Role: "assistant", Content: "ok"})
	a := newTestAgent(t, inference)

	err := a.Reconfigure(config.AgentConfig{
		BaseURL:      inference.server.URL,
		Models:       []config.ModelConfig{{ModelID: "granite-3.3"}},
		DefaultModel: "missing-model",
	})
	require.Error(t, err)

	session, err := a.CreateSession(context.Background(), "chat")
	require.NoError(t, err)
	events, err := a.CreateTurn(context.Background(), session.SessionID, "hello")
	require.NoError(t, err)
	collectEvents(t, events)

	assert.Equal(t, "gpt-4o-mini", inference.lastRequest().Model,
		"a rejected reconfigure keeps the previous settings")
}
