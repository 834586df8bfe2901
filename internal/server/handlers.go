package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"persai/internal/api"
	"persai/internal/auth"
	"persai/internal/tools"
	"persai/pkg/logging"
)

// turnRequest is the body of a turn creation request.
type turnRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	session, err := s.agent.CreateSession(r.Context(), "chat")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.agent.ListSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	if err := s.agent.DeleteSession(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "deleted"})
}

func (s *Server) handleTurnCreate(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	datasourcePath := r.URL.Query().Get("datasource_path")
	if datasourcePath == "" {
		writeError(w, api.NewValidationError("no datasource path provided"))
		return
	}

	var body turnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, api.NewValidationError("invalid request body: %v", err))
		return
	}

	authInfo, persesURL, err := s.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	prometheusURL := strings.TrimRight(persesURL, "/") + datasourcePath + "/api/v1"

	tc := tools.NewToolContext(prometheusURL, authInfo)
	ctx := tools.WithToolContext(r.Context(), tc)

	events, err := s.agent.CreateTurn(ctx, sessionID, body.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	streamEvents(w, events)
}

// authenticate resolves the request's credentials and Perses URL.
//
// With auth enabled the cookies are required and the session must pass the
// validator; a validation failure rejects the request outright, unlike the
// best-effort refresh inside tool calls. With auth disabled only the Perses
// URL is resolved and the tools run without credentials.
func (s *Server) authenticate(r *http.Request) (*auth.Info, string, error) {
	cfg := s.cfg.Get()
	cookies := auth.NewCookieProvider(cfg.Auth.PersesURL)

	if !cfg.Auth.Enabled {
		persesURL, err := cookies.ResolvePersesURL(r)
		if err != nil {
			return nil, "", err
		}
		return nil, persesURL, nil
	}

	info, err := cookies.AuthInfoFromRequest(r)
	if err != nil {
		return nil, "", err
	}

	result := s.validator.Validate(r.Context(), info)
	if !result.IsValid {
		return nil, "", api.NewCredentialsError("Token validation failed: %s", result.Error)
	}

	logging.Info("Server", "Token validation successful")
	return info, info.PersesURL, nil
}
