// Package server exposes sessions over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
	"github.com/kagent-dev/agentdesk/pkg/adk/session"
)

// Server routes HTTP requests to the session manager
type Server struct {
	manager  *session.Manager
	gatherer prometheus.Gatherer
	log      logr.Logger
	router   *mux.Router

	keepAlive time.Duration
}

// New creates the server. gatherer backs /metrics; nil uses the default registry.
func New(manager *session.Manager, gatherer prometheus.Gatherer, log logr.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		manager:  manager,
		gatherer: gatherer,
		log:      log.WithName("server"),
		router:   mux.NewRouter(),

		keepAlive: KeepAliveInterval,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/conversation", s.handleConversation).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/submit", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/events", s.handleEvents).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer wraps the handler in an http.Server listening on host:port.
// There is no write timeout: event streams stay open for the life of a session.
func (s *Server) HTTPServer(host string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		s.log.Error(err, "Request failed")
	}
	if code == "" {
		code = "INTERNAL"
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
}

func statusFor(code string) int {
	switch code {
	case apperrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeRunAlreadyActive:
		return http.StatusConflict
	case apperrors.ErrCodeInvalidArguments, apperrors.ErrCodeInvalidTurnOrder:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
