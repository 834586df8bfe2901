package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"persai/internal/agent"
	"persai/internal/auth"
	"persai/internal/config"
	"persai/pkg/logging"
)

// Server is the persai HTTP API: session management, turn streaming, and
// operational endpoints.
type Server struct {
	cfg       *config.Manager
	agent     agent.Client
	validator *auth.TokenValidator
	metrics   *Metrics
}

// New creates a Server. metrics may be nil.
func New(cfg *config.Manager, agentClient agent.Client, validator *auth.TokenValidator, metrics *Metrics) *Server {
	return &Server{
		cfg:       cfg,
		agent:     agentClient,
		validator: validator,
		metrics:   metrics,
	}
}

// Router builds the HTTP handler with all routes and middleware applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recordMetrics)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleSessionCreate).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleSessionsList).Methods(http.MethodGet)
	api.HandleFunc("/session/{session_id}", s.handleSessionDelete).Methods(http.MethodDelete)
	api.HandleFunc("/session/{session_id}/turn", s.handleTurnCreate).Methods(http.MethodPost)

	var handler http.Handler = r
	if origins := s.cfg.Get().ResolveCORSOrigins(); origins != nil {
		handler = cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(handler)
		logging.Info("Server", "CORS enabled for origins %v", origins)
	}

	return s.requestLogging(handler)
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverCfg := s.cfg.Get().Server
	addr := fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Server", "HTTP API listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logging.Info("Server", "Shutting down HTTP API")
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
