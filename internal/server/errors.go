package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"persai/internal/agent"
	"persai/internal/api"
	"persai/pkg/logging"
)

// errorBody is the JSON envelope for all error responses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// writeError maps an error to its HTTP status and writes the JSON envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errType := "InternalError"

	var credErr *api.CredentialsError
	var confErr *api.ConfigurationError
	var promErr *api.PrometheusError
	var valErr *api.ValidationError

	switch {
	case errors.Is(err, agent.ErrSessionNotFound):
		status = http.StatusNotFound
		errType = "SessionNotFound"
	case errors.As(err, &credErr):
		status = http.StatusUnauthorized
		errType = "CredentialsError"
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
		errType = "ValidationError"
	case errors.As(err, &promErr):
		status = http.StatusBadGateway
		errType = "PrometheusError"
	case errors.As(err, &confErr):
		status = http.StatusInternalServerError
		errType = "ConfigurationError"
	}

	if status >= http.StatusInternalServerError {
		logging.Error("Server", err, "Request failed")
	} else {
		logging.Warn("Server", "Request rejected with %d: %v", status, err)
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Type: errType, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error("Server", err, "Failed to encode response")
	}
}
