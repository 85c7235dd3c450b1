// Package a2ahttp serves and consumes tasks over HTTP using chi routing:
// an agent card endpoint, a task submission endpoint that echoes the payment
// extension header, and a posting client for the caller side.
package a2ahttp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mark3labs/x402-a2a-go/a2a"
)

// TaskHandler processes one submitted task and returns the outgoing task.
// The negotiation executor satisfies this through a small adapter in the
// serving program.
type TaskHandler interface {
	HandleTask(r *http.Request, task *a2a.Task) (*a2a.Task, error)
}

// TaskHandlerFunc adapts a function to TaskHandler.
type TaskHandlerFunc func(r *http.Request, task *a2a.Task) (*a2a.Task, error)

// HandleTask implements TaskHandler.
func (f TaskHandlerFunc) HandleTask(r *http.Request, task *a2a.Task) (*a2a.Task, error) {
	return f(r, task)
}

// Server wires the agent card and task endpoints onto a chi router.
type Server struct {
	card    a2a.AgentCard
	handler TaskHandler
	logger  *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a transport server for the given agent card and handler.
func NewServer(card a2a.AgentCard, handler TaskHandler, opts ...ServerOption) *Server {
	s := &Server{
		card:    card,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP routes:
//
//	GET  /.well-known/agent.json  — the agent card
//	POST /a2a/tasks               — task submission
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/.well-known/agent.json", s.handleCard)
	r.Post("/a2a/tasks", s.handleTask)
	return r
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var task a2a.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed task"})
		return
	}
	if task.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task id required"})
		return
	}

	// Activation is advisory: absence never blocks processing.
	a2a.EchoExtension(w, r)

	result, err := s.handler.HandleTask(r, &task)
	if err != nil {
		s.logger.Error("task handling failed", "taskId", task.ID, "error", err)
		if result == nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		// A failed task is still a valid protocol response.
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
