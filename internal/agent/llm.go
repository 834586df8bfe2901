package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"persai/pkg/logging"
)

const chatCompletionsPath = "/v1/chat/completions"

// chatRequest is the OpenAI-compatible completion request body.
type chatRequest struct {
	Model    string           `json:"model"`
	Messages []chatMessage    `json:"messages"`
	Tools    []toolDefinition `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// inferenceClient calls an OpenAI-compatible chat completions endpoint.
type inferenceClient struct {
	baseURL    string
	httpClient *http.Client
}

func newInferenceClient(baseURL string, httpClient *http.Client) *inferenceClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &inferenceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// complete runs one completion round and returns the assistant message,
// which may carry tool calls instead of (or in addition to) text.
func (c *inferenceClient) complete(ctx context.Context, model string, messages []chatMessage, tools []toolDefinition) (chatMessage, error) {
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return chatMessage{}, fmt.Errorf("encoding completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return chatMessage{}, fmt.Errorf("building completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logging.Debug("Inference", "Requesting completion with model %s (%d messages)", model, len(messages))
	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chatMessage{}, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatMessage{}, fmt.Errorf("reading completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return chatMessage{}, fmt.Errorf("completion request rejected with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return chatMessage{}, fmt.Errorf("decoding completion response: %w", err)
	}
	if parsed.Error != nil {
		return chatMessage{}, fmt.Errorf("completion failed: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return chatMessage{}, fmt.Errorf("completion response contains no choices")
	}

	logging.Debug("Inference", "Completion finished in %s (finish_reason=%s)",
		time.Since(started).Round(time.Millisecond), parsed.Choices[0].FinishReason)

	return parsed.Choices[0].Message, nil
}
