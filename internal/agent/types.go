package agent

import (
	"encoding/json"
	"time"
)

// Session is one conversation with the agent.
type Session struct {
	SessionID   string    `json:"session_id"`
	SessionName string    `json:"session_name"`
	StartedAt   time.Time `json:"started_at"`
	TurnCount   int       `json:"turn_count"`
}

// Turn event types emitted while a turn is being processed.
const (
	EventTurnStart    = "turn_start"
	EventText         = "text"
	EventToolCall     = "tool_call"
	EventToolResult   = "tool_result"
	EventTurnComplete = "turn_complete"
	EventError        = "error"
)

// TurnEvent is one element of a turn's event stream. Exactly the fields
// relevant to the event type are set.
type TurnEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`

	// Text carries assistant output for text events and the full final
	// answer for turn_complete.
	Text string `json:"text,omitempty"`

	// Tool call / result fields.
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`
	ToolResult string          `json:"tool_result,omitempty"`
	ToolError  bool            `json:"tool_error,omitempty"`

	Error string `json:"error,omitempty"`
}

// chatMessage is one message of the model conversation, in the
// OpenAI-compatible chat wire format the inference stack speaks.
type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// toolCall is an assistant request to execute one tool.
type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// toolDefinition advertises one callable tool to the model.
type toolDefinition struct {
	Type     string             `json:"type"`
	Function functionDefinition `json:"function"`
}

type functionDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}
