package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"persai/internal/api"
	"persai/internal/config"
	"persai/pkg/logging"
	pstrings "persai/pkg/strings"
)

// maxTurnIterations bounds the completion/tool-call loop of a single turn.
const maxTurnIterations = 10

// Agent orchestrates conversations: it keeps sessions, drives the
// completion loop against the inference stack, and executes the tool calls
// the model requests.
//
// Tools run in-process with the turn's context. That is the load-bearing
// property of the whole design: the per-request ToolContext installed by the
// HTTP layer reaches every tool call of the turn, including concurrent ones.
type Agent struct {
	mu           sync.RWMutex
	model        string
	systemPrompt string
	llm          *inferenceClient

	store *sessionStore

	tools    []mcpserver.ServerTool
	handlers map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New builds an Agent from configuration and the tool set it may call.
func New(cfg config.AgentConfig, tools []mcpserver.ServerTool, httpClient *http.Client) (*Agent, error) {
	if cfg.BaseURL == "" {
		return nil, api.NewConfigurationError("no inference base URL configured")
	}

	model, err := SelectModel(cfg)
	if err != nil {
		return nil, err
	}

	handlers := make(map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), len(tools))
	for _, tool := range tools {
		handlers[tool.Tool.Name] = tool.Handler
	}

	logging.Info("Agent", "Agent initialized with model %s and %d tools", model, len(tools))

	return &Agent{
		model:        model,
		systemPrompt: SystemPrompt(cfg),
		llm:          newInferenceClient(cfg.BaseURL, httpClient),
		store:        newSessionStore(),
		tools:        tools,
		handlers:     handlers,
	}, nil
}

// Reconfigure applies updated agent settings from a reloaded configuration.
// In-flight turns keep the settings they started with; the next turn picks
// up the new ones. Invalid settings are rejected and the previous ones stay
// in effect.
func (a *Agent) Reconfigure(cfg config.AgentConfig) error {
	if cfg.BaseURL == "" {
		return api.NewConfigurationError("no inference base URL configured")
	}

	model, err := SelectModel(cfg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.model = model
	a.systemPrompt = SystemPrompt(cfg)
	if strings.TrimRight(cfg.BaseURL, "/") != a.llm.baseURL {
		a.llm = newInferenceClient(cfg.BaseURL, a.llm.httpClient)
	}

	logging.Info("Agent", "Agent reconfigured with model %s", model)
	return nil
}

// CreateSession starts a new conversation.
func (a *Agent) CreateSession(ctx context.Context, name string) (*Session, error) {
	session := a.store.create(name)
	logging.Info("Agent", "Session %s created", session.SessionID)
	return &session, nil
}

// ListSessions returns all live sessions, oldest first.
func (a *Agent) ListSessions(ctx context.Context) ([]Session, error) {
	return a.store.list(), nil
}

// DeleteSession removes a session and its history.
func (a *Agent) DeleteSession(ctx context.Context, sessionID string) error {
	if !a.store.delete(sessionID) {
		return ErrSessionNotFound
	}
	logging.Info("Agent", "Session %s deleted", sessionID)
	return nil
}

// CreateTurn processes one user message within a session and streams the
// resulting events. The returned channel is closed when the turn finishes,
// successfully or not.
func (a *Agent) CreateTurn(ctx context.Context, sessionID, message string) (<-chan TurnEvent, error) {
	history, exists := a.store.history(sessionID)
	if !exists {
		return nil, ErrSessionNotFound
	}

	turnID := uuid.NewString()
	events := make(chan TurnEvent, 16)

	go a.runTurn(ctx, sessionID, turnID, message, history, events)

	return events, nil
}

func (a *Agent) runTurn(ctx context.Context, sessionID, turnID, message string, history []chatMessage, events chan<- TurnEvent) {
	defer close(events)

	emit := func(event TurnEvent) {
		event.SessionID = sessionID
		event.TurnID = turnID
		events <- event
	}

	emit(TurnEvent{Event: EventTurnStart})
	logging.Info("Agent", "Turn %s started in session %s (message length %d)", turnID, sessionID, len(message))

	// Snapshot the settings once so a concurrent Reconfigure cannot switch
	// the model or prompt halfway through a turn.
	a.mu.RLock()
	model, systemPrompt, llm := a.model, a.systemPrompt, a.llm
	a.mu.RUnlock()

	conversation := append(history, chatMessage{Role: "user", Content: message})
	toolDefs := a.toolDefinitions()

	for iteration := 0; iteration < maxTurnIterations; iteration++ {
		if ctx.Err() != nil {
			emit(TurnEvent{Event: EventError, Error: ctx.Err().Error()})
			return
		}

		messages := append([]chatMessage{{Role: "system", Content: systemPrompt}}, conversation...)

		assistant, err := llm.complete(ctx, model, messages, toolDefs)
		if err != nil {
			logging.Error("Agent", err, "Turn %s failed during inference", turnID)
			emit(TurnEvent{Event: EventError, Error: err.Error()})
			return
		}

		conversation = append(conversation, assistant)

		if assistant.Content != "" {
			emit(TurnEvent{Event: EventText, Text: assistant.Content})
		}

		if len(assistant.ToolCalls) == 0 {
			a.store.commit(sessionID, conversation)
			emit(TurnEvent{Event: EventTurnComplete, Text: assistant.Content})
			logging.Info("Agent", "Turn %s completed after %d iterations: %s",
				turnID, iteration+1, pstrings.TruncateSummary(assistant.Content, pstrings.DefaultSummaryMaxLen))
			return
		}

		results := a.executeToolCalls(ctx, assistant.ToolCalls, emit)
		conversation = append(conversation, results...)
	}

	emit(TurnEvent{Event: EventError, Error: fmt.Sprintf("turn exceeded %d tool iterations", maxTurnIterations)})
}

// executeToolCalls runs all tool calls of one assistant message with the
// turn's context. Calls run concurrently; a refresh performed by one call is
// visible to its siblings through the shared ToolContext.
func (a *Agent) executeToolCalls(ctx context.Context, calls []toolCall, emit func(TurnEvent)) []chatMessage {
	for _, call := range calls {
		emit(TurnEvent{
			Event:      EventToolCall,
			ToolCallID: call.ID,
			ToolName:   call.Function.Name,
			ToolArgs:   json.RawMessage(call.Function.Arguments),
		})
	}

	results := make([]chatMessage, len(calls))
	outcomes := make([]TurnEvent, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call toolCall) {
			defer wg.Done()

			content, isError := a.executeToolCall(ctx, call)
			results[i] = chatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    content,
			}
			outcomes[i] = TurnEvent{
				Event:      EventToolResult,
				ToolCallID: call.ID,
				ToolName:   call.Function.Name,
				ToolResult: content,
				ToolError:  isError,
			}
		}(i, call)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		emit(outcome)
	}
	return results
}

func (a *Agent) executeToolCall(ctx context.Context, call toolCall) (content string, isError bool) {
	handler, exists := a.handlers[call.Function.Name]
	if !exists {
		return fmt.Sprintf("unknown tool: %s", call.Function.Name), true
	}

	var args map[string]interface{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("invalid tool arguments: %v", err), true
		}
	}

	var req mcp.CallToolRequest
	req.Params.Name = call.Function.Name
	req.Params.Arguments = args

	logging.Info("Agent", "Executing tool %s", call.Function.Name)

	result, err := handler(ctx, req)
	if err != nil {
		logging.Error("Agent", err, "Tool %s failed", call.Function.Name)
		return fmt.Sprintf("tool %s failed: %v", call.Function.Name, err), true
	}

	return flattenToolResult(result), result.IsError
}

// flattenToolResult joins the text contents of a tool result into the
// string handed back to the model.
func flattenToolResult(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (a *Agent) toolDefinitions() []toolDefinition {
	defs := make([]toolDefinition, 0, len(a.tools))
	for _, tool := range a.tools {
		defs = append(defs, toolDefinition{
			Type: "function",
			Function: functionDefinition{
				Name:        tool.Tool.Name,
				Description: tool.Tool.Description,
				Parameters:  tool.Tool.InputSchema,
			},
		})
	}
	return defs
}
