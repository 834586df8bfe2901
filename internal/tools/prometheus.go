package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"persai/internal/api"
	"persai/internal/auth"
	"persai/pkg/logging"
)

// RangeQueryResult is the payload of a successful range query.
type RangeQueryResult struct {
	ResultType string          `json:"resultType"`
	Result     json.RawMessage `json:"result"`
}

// prometheusEnvelope is the standard Prometheus API response wrapper.
type prometheusEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

// PrometheusClient issues authenticated requests against a Prometheus API
// endpoint proxied through Perses.
//
// Before every request the client checks whether the access token is near
// expiry and refreshes it proactively. A successful refresh updates both the
// client's own auth info and the active ToolContext, so sibling tool calls
// in the same turn pick up the fresh token instead of refreshing again.
type PrometheusClient struct {
	baseURL    string
	httpClient *http.Client
	refresher  *auth.Refresher

	mu       sync.Mutex
	authInfo *auth.Info
}

// NewPrometheusClient creates a client for the given endpoint. authInfo may
// be nil when auth is disabled; requests are then issued without an
// Authorization header.
func NewPrometheusClient(baseURL string, authInfo *auth.Info, refresher *auth.Refresher) *PrometheusClient {
	return &PrometheusClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		refresher:  refresher,
		authInfo:   authInfo,
	}
}

// ListMetrics returns the names of all metrics known to the backend.
func (c *PrometheusClient) ListMetrics(ctx context.Context) ([]string, error) {
	data, err := c.get(ctx, "label/__name__/values", nil)
	if err != nil {
		return nil, err
	}

	var metrics []string
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, &api.PrometheusError{Message: "decoding metric names", Cause: err}
	}
	return metrics, nil
}

// ExecuteRangeQuery runs a PromQL range query with explicit bounds. start
// and end are passed through verbatim (RFC3339 or Unix timestamps), step is
// a Prometheus resolution string such as "15s" or "1m".
func (c *PrometheusClient) ExecuteRangeQuery(ctx context.Context, query, start, end, step string) (*RangeQueryResult, error) {
	form := url.Values{}
	form.Set("query", query)
	form.Set("start", start)
	form.Set("end", end)
	form.Set("step", step)

	data, err := c.post(ctx, "query_range", form)
	if err != nil {
		return nil, err
	}

	var result RangeQueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &api.PrometheusError{Message: "decoding range query result", Cause: err}
	}
	return &result, nil
}

func (c *PrometheusClient) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, endpoint, params, nil)
}

func (c *PrometheusClient) post(ctx context.Context, endpoint string, form url.Values) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, endpoint, nil, form)
}

// request performs one authenticated call and unwraps the Prometheus
// response envelope.
func (c *PrometheusClient) request(ctx context.Context, method, endpoint string, params, form url.Values) (json.RawMessage, error) {
	c.ensureValidToken(ctx)

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, reqURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if info := c.currentAuth(); info != nil && info.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+info.AuthToken)
	}

	logging.Debug("Prometheus", "Issuing %s %s", method, reqURL)
	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Error("Prometheus", err, "Request to %s failed after %s", reqURL, time.Since(started))
		return nil, &api.PrometheusError{Message: "Prometheus request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &api.PrometheusError{Message: "reading Prometheus response", Cause: err}
	}

	logging.Info("Prometheus", "%s %s completed with status %d in %s (%d bytes)",
		method, endpoint, resp.StatusCode, time.Since(started).Round(time.Millisecond), len(body))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &api.PrometheusError{
			Message:    fmt.Sprintf("Prometheus request failed: %s", resp.Status),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var envelope prometheusEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &api.PrometheusError{Message: "decoding Prometheus response", Cause: err}
	}

	if envelope.Status != "success" {
		msg := envelope.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &api.PrometheusError{Message: "Prometheus API error: " + msg}
	}

	return envelope.Data, nil
}

// ensureValidToken refreshes the access token when it is near expiry. A
// successful refresh is written back into the active ToolContext so that
// subsequent tool calls in the same turn see it. Refresh failures have
// already been logged and swallowed by the refresher; the request proceeds
// with the old token and the backend reports the real failure if there is
// one.
func (c *PrometheusClient) ensureValidToken(ctx context.Context) {
	if c.refresher == nil {
		return
	}
	updated := c.refresher.EnsureValid(ctx, c.currentAuth())
	if updated == nil {
		return
	}

	c.mu.Lock()
	c.authInfo = updated
	c.mu.Unlock()

	if tc, err := FromContext(ctx); err == nil {
		tc.SetAuth(updated)
	}
}

func (c *PrometheusClient) currentAuth() *auth.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authInfo
}
