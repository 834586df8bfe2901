package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"persai/internal/api"
	"persai/pkg/logging"
)

// refreshEndpoint is the Perses refresh path, relative to the origin.
const refreshEndpoint = "/api/auth/refresh"

// refreshRequest is the JSON body sent to the Perses refresh endpoint.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshResponse is the JSON body returned by the Perses refresh endpoint.
// The refresh token is optional: Perses may rotate it or leave it out.
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Refresher exchanges a refresh token for a new access token against the
// Perses auth endpoint. It is safe for concurrent use.
type Refresher struct {
	httpClient *http.Client
}

// NewRefresher creates a Refresher. A nil client gets a default with a
// conservative timeout; refresh runs on the request path and must not hang.
func NewRefresher(httpClient *http.Client) *Refresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Refresher{httpClient: httpClient}
}

// Refresh calls the Perses refresh endpoint and returns a new Info carrying
// the fresh access token. The input Info is never mutated; PersesURL is
// carried forward, and so is the old refresh token when the response omits
// a new one.
func (rf *Refresher) Refresh(ctx context.Context, info *Info) (*Info, error) {
	if info == nil || info.RefreshToken == "" {
		return nil, api.NewCredentialsError("no refresh token available")
	}

	refreshURL := strings.TrimRight(info.PersesURL, "/") + refreshEndpoint
	logging.Info("Auth", "Refreshing auth token via %s", refreshURL)

	body, err := json.Marshal(refreshRequest{RefreshToken: info.RefreshToken})
	if err != nil {
		return nil, fmt.Errorf("encoding refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rf.httpClient.Do(req)
	if err != nil {
		return nil, &api.PrometheusError{Message: "token refresh request failed", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &api.PrometheusError{Message: "reading refresh response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &api.PrometheusError{
			Message:    "token refresh rejected",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var tokenData refreshResponse
	if err := json.Unmarshal(respBody, &tokenData); err != nil {
		return nil, &api.PrometheusError{Message: "decoding refresh response", Cause: err}
	}

	claims, err := ParseJWTPayload(tokenData.AccessToken)
	if err != nil {
		return nil, err
	}

	refreshToken := tokenData.RefreshToken
	if refreshToken == "" {
		refreshToken = info.RefreshToken
	}

	logging.Info("Auth", "Auth token refreshed successfully (token %s)",
		logging.TruncateToken(tokenData.AccessToken))

	return &Info{
		AuthToken:    tokenData.AccessToken,
		RefreshToken: refreshToken,
		PersesURL:    info.PersesURL,
		Claims:       claims,
	}, nil
}

// EnsureValid performs the best-effort proactive refresh used on the request
// path. It returns the refreshed Info when a refresh happened, and nil in
// every other case: no auth configured, token still fresh, no refresh token,
// or refresh failed. Failures are logged and swallowed; the downstream call
// will surface the real auth failure if the old token truly no longer works.
func (rf *Refresher) EnsureValid(ctx context.Context, info *Info) *Info {
	// Auth can be disabled entirely (PERSAI_AUTH=false), in which case there
	// is nothing to keep fresh.
	if info == nil || info.AuthToken == "" {
		return nil
	}

	if !info.ShouldRefresh(DefaultRefreshThreshold) {
		return nil
	}

	if info.RefreshToken == "" {
		logging.Warn("Auth", "Auth token expired but no refresh token available")
		return nil
	}

	updated, err := rf.Refresh(ctx, info)
	if err != nil {
		logging.Error("Auth", err, "Failed to refresh auth token, proceeding with current token")
		return nil
	}
	return updated
}
