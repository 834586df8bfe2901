// Package agent implements the conversational agent behind the persai API.
//
// The agent keeps chat sessions in memory and processes turns as a loop of
// model completions and tool executions against an OpenAI-compatible
// inference endpoint. Tool calls requested by the model are executed
// in-process with the turn's own context, so request-scoped state such as
// credentials flows into them naturally. Each turn is streamed to the caller
// as a channel of TurnEvents.
package agent
