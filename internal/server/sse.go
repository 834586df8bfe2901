package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"persai/internal/agent"
	"persai/pkg/logging"
)

// streamEvents writes the turn's events as Server-Sent Events, flushing
// after each one so the frontend renders progress live.
func streamEvents(w http.ResponseWriter, events <-chan agent.TurnEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			logging.Error("Server", err, "Failed to encode turn event")
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", payload)
		if flusher != nil {
			flusher.Flush()
		}
	}
}
