package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"persai/pkg/logging"
)

// statusRecorder captures the response status for logging and metrics while
// still exposing Flush, which the SSE stream needs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// requestLogging tags every request with an ID and logs start, completion,
// status and duration.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		started := time.Now()

		logging.Info("Server", "Request started id=%s %s %s", requestID, r.Method, r.URL.Path)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		duration := time.Since(started)
		logging.Info("Server", "Request completed id=%s %s %s status=%d duration=%s",
			requestID, r.Method, r.URL.Path, recorder.status, duration.Round(time.Millisecond))
	})
}

// recordMetrics counts requests and observes latency. It runs as a router
// middleware so the mux route template is available: the path label stays
// bounded no matter how many session IDs pass through.
func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.metrics.record(r.Method, routeTemplate(r), strconv.Itoa(recorder.status), time.Since(started).Seconds())
	})
}

// routeTemplate returns the matched route pattern, falling back to the raw
// path when no route information is attached to the request.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
