package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persai/internal/agent"
	"persai/internal/auth"
	"persai/internal/config"
	"persai/internal/tools"
)

// fakeAgent scripts the agent behavior and records what the server passed in.
type fakeAgent struct {
	sessions []agent.Session

	createErr error
	deleteErr error
	turnErr   error

	turnEvents []agent.TurnEvent

	lastTurnCtx     context.Context
	lastTurnSession string
	lastTurnMessage string
}

func (f *fakeAgent) CreateSession(ctx context.Context, name string) (*agent.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &agent.Session{SessionID: "session-1", SessionName: name, StartedAt: time.Now()}, nil
}

func (f *fakeAgent) ListSessions(ctx context.Context) ([]agent.Session, error) {
	return f.sessions, nil
}

func (f *fakeAgent) DeleteSession(ctx context.Context, sessionID string) error {
	return f.deleteErr
}

func (f *fakeAgent) CreateTurn(ctx context.Context, sessionID, message string) (<-chan agent.TurnEvent, error) {
	f.lastTurnCtx = ctx
	f.lastTurnSession = sessionID
	f.lastTurnMessage = message

	if f.turnErr != nil {
		return nil, f.turnErr
	}

	events := make(chan agent.TurnEvent, len(f.turnEvents))
	for _, event := range f.turnEvents {
		events <- event
	}
	close(events)
	return events, nil
}

func newTestConfig(t *testing.T, yaml string) *config.Manager {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	m, err := config.NewManager(dir, nil)
	require.NoError(t, err)
	return m
}

func makeServerJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	encode := func(v interface{}) string {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(data)
	}
	return encode(map[string]string{"alg": "HS256", "typ": "JWT"}) + "." + encode(claims) + ".sig"
}

// setAuthCookies splits token into the payload/signature cookie shards the
// frontend sends.
func setAuthCookies(r *http.Request, token, refreshToken string) {
	parts := strings.Split(token, ".")
	r.AddCookie(&http.Cookie{Name: auth.CookiePayloadPart, Value: parts[0] + "." + parts[1]})
	r.AddCookie(&http.Cookie{Name: auth.CookieSignaturePart, Value: parts[2]})
	r.AddCookie(&http.Cookie{Name: auth.CookieRefreshToken, Value: refreshToken})
}

// newPersesStub serves the refresh endpoint the validator probes.
func newPersesStub(t *testing.T, status int) (*httptest.Server, *atomic.Int64) {
	var calls atomic.Int64
	accessToken := makeServerJWT(t, map[string]interface{}{
		"sub": "alice",
		"exp": float64(time.Now().Add(time.Hour).Unix()),
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/refresh", r.URL.Path)
		calls.Add(1)
		if status >= 400 {
			w.WriteHeader(status)
			w.Write([]byte(`{"message": "session revoked"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": accessToken})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestServer(cfg *config.Manager, a agent.Client) *Server {
	validator := auth.NewTokenValidator(auth.NewRefresher(nil), nil)
	return New(cfg, a, validator, nil)
}

func decodeErrorBody(t *testing.T, resp *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestSessionCreate(t *testing.T) {
	cfg := newTestConfig(t, "auth:\n  enabled: true\n")
	s := newTestServer(cfg, &fakeAgent{})

	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)

	var session agent.Session
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
	assert.Equal(t, "session-1", session.SessionID)
	assert.Equal(t, "chat", session.SessionName)
}

func TestSessionsList(t *testing.T) {
	cfg := newTestConfig(t, "auth:\n  enabled: true\n")
	s := newTestServer(cfg, &fakeAgent{sessions: []agent.Session{
		{SessionID: "a"}, {SessionID: "b"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var sessions []agent.Session
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 2)
}

func TestSessionDeleteNotFound(t *testing.T) {
	cfg := newTestConfig(t, "auth:\n  enabled: true\n")
	s := newTestServer(cfg, &fakeAgent{deleteErr: agent.ErrSessionNotFound})

	req := httptest.NewRequest(http.MethodDelete, "/api/session/nope", nil)
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "SessionNotFound", decodeErrorBody(t, resp).Error.Type)
}

func TestTurnMissingDatasourcePath(t *testing.T) {
	cfg := newTestConfig(t, "auth:\n  enabled: true\n")
	s := newTestServer(cfg, &fakeAgent{})

	req := httptest.NewRequest(http.MethodPost, "/api/session/s1/turn", strings.NewReader(`{"message": "hi"}`))
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	body := decodeErrorBody(t, resp)
	assert.Equal(t, "ValidationError", body.Error.Type)
	assert.Contains(t, body.Error.Message, "datasource path")
}

func TestTurnMissingCookiesRejectedBeforeValidation(t *testing.T) {
	perses, refreshCalls := newPersesStub(t, http.StatusOK)
	cfg := newTestConfig(t, "auth:\n  enabled: true\n  persesURL: "+perses.URL+"\n")

	fake := &fakeAgent{}
	s := newTestServer(cfg, fake)

	req := httptest.NewRequest(http.MethodPost, "/api/session/s1/turn?datasource_path=/proxy/ds", strings.NewReader(`{"message": "hi"}`))
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
	body := decodeErrorBody(t, resp)
	assert.Equal(t, "CredentialsError", body.Error.Type)
	assert.Contains(t, body.Error.Message, "cookies not found or incomplete")

	assert.Equal(t, int64(0), refreshCalls.Load(), "incomplete cookies must be rejected before probing upstream")
	assert.Nil(t, fake.lastTurnCtx, "the agent must not be invoked")
}

func TestTurnInvalidSessionRejected(t *testing.T) {
	perses, _ := newPersesStub(t, http.StatusUnauthorized)
	cfg := newTestConfig(t, "auth:\n  enabled: true\n  persesURL: "+perses.URL+"\n")

	s := newTestServer(cfg, &fakeAgent{})

	token := makeServerJWT(t, map[string]interface{}{
		"sub": "alice",
		"exp": float64(time.Now().Add(time.Hour).Unix()),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/session/s1/turn?datasource_path=/proxy/ds", strings.NewReader(`{"message": "hi"}`))
	setAuthCookies(req, token, "dead-refresh-token")

	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
	body := decodeErrorBody(t, resp)
	assert.Equal(t, "CredentialsError", body.Error.Type)
	assert.Contains(t, body.Error.Message, "Token validation failed")
}

func TestTurnStreamsEventsWithAuth(t *testing.T) {
	perses, refreshCalls := newPersesStub(t, http.StatusOK)
	cfg := newTestConfig(t, "auth:\n  enabled: true\n  persesURL: "+perses.URL+"\n")

	fake := &fakeAgent{turnEvents: []agent.TurnEvent{
		{Event: agent.EventTurnStart},
		{Event: agent.EventText, Text: "hello"},
		{Event: agent.EventTurnComplete, Text: "hello"},
	}}
	s := newTestServer(cfg, fake)

	token := makeServerJWT(t, map[string]interface{}{
		"sub": "alice",
		"exp": float64(time.Now().Add(time.Hour).Unix()),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/session/s1/turn?datasource_path=/proxy/ds", strings.NewReader(`{"message": "how is the cluster?"}`))
	setAuthCookies(req, token, "refresh-token")

	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))
	assert.Equal(t, int64(1), refreshCalls.Load())

	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "data: "))
	}
	assert.Contains(t, lines[1], `"text":"hello"`)

	// The agent got the turn parameters and the tool context.
	assert.Equal(t, "s1", fake.lastTurnSession)
	assert.Equal(t, "how is the cluster?", fake.lastTurnMessage)

	tc, err := tools.FromContext(fake.lastTurnCtx)
	require.NoError(t, err)
	assert.Equal(t, perses.URL+"/proxy/ds/api/v1", tc.PrometheusURL)
	require.NotNil(t, tc.Auth())
	assert.Equal(t, token, tc.Auth().AuthToken)
	assert.Equal(t, "refresh-token", tc.Auth().RefreshToken)
}

func TestTurnAuthDisabled(t *testing.T) {
	cfg := newTestConfig(t, "auth:\n  enabled: false\n  persesURL: https://perses.example.com\n")

	fake := &fakeAgent{turnEvents: []agent.TurnEvent{{Event: agent.EventTurnComplete}}}
	s := newTestServer(cfg, fake)

	req := httptest.NewRequest(http.MethodPost, "/api/session/s1/turn?datasource_path=/proxy/ds", strings.NewReader(`{"message": "hi"}`))
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	tc, err := tools.FromContext(fake.lastTurnCtx)
	require.NoError(t, err)
	assert.Equal(t, "https://perses.example.com/proxy/ds/api/v1", tc.PrometheusURL)
	assert.Nil(t, tc.Auth(), "auth-disabled mode carries no credentials")
}

func TestTurnUnknownSession(t *testing.T) {
	cfg := newTestConfig(t, "auth:\n  enabled: false\n  persesURL: https://perses.example.com\n")
	s := newTestServer(cfg, &fakeAgent{turnErr: agent.ErrSessionNotFound})

	req := httptest.NewRequest(http.MethodPost, "/api/session/nope/turn?datasource_path=/proxy/ds", strings.NewReader(`{"message": "hi"}`))
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "SessionNotFound", decodeErrorBody(t, resp).Error.Type)
}

func TestHealthEndpoint(t *testing.T) {
	cfg := newTestConfig(t, "auth:\n  enabled: true\n")
	s := newTestServer(cfg, &fakeAgent{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMetricsPathLabelUsesRouteTemplate(t *testing.T) {
	cfg := newTestConfig(t, "auth:\n  enabled: false\n  persesURL: https://perses.example.com\n")
	fake := &fakeAgent{turnEvents: []agent.TurnEvent{{Event: agent.EventTurnComplete}}}
	reg := prometheus.NewRegistry()
	s := New(cfg, fake, auth.NewTokenValidator(auth.NewRefresher(nil), nil), NewMetrics(reg))
	router := s.Router()

	for _, id := range []string{"session-a", "session-b"} {
		req := httptest.NewRequest(http.MethodPost,
			"/api/session/"+id+"/turn?datasource_path=/proxy/ds", strings.NewReader(`{"message": "hi"}`))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusOK, resp.Code)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	var paths []string
	var total float64
	for _, family := range families {
		if family.GetName() != "persai_http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					paths = append(paths, label.GetValue())
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, []string{"/api/session/{session_id}/turn"}, paths,
		"session IDs must not become label values")
	assert.Equal(t, float64(2), total)
}
