package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tasking/internal/auth"
	"tasking/internal/host"
	"tasking/internal/report"
	"tasking/pkg/actor"
	"tasking/pkg/eventgraph"
	"tasking/pkg/task"
)

// Options wires a Server to its collaborators.
type Options struct {
	Dispatcher *host.Dispatcher
	Tasks      task.Store
	Actors     actor.Store
	Bus        *eventgraph.Bus
	Clock      task.Clock
	Tokens     *auth.Issuer
	AdminKey   string
	Logger     *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	disp     *host.Dispatcher
	tasks    task.Store
	actors   actor.Store
	bus      *eventgraph.Bus
	clock    task.Clock
	tokens   *auth.Issuer
	adminKey string
	exporter *report.Exporter
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a new Server.
func New(opts Options) *Server {
	s := &Server{
		disp:     opts.Dispatcher,
		tasks:    opts.Tasks,
		actors:   opts.Actors,
		bus:      opts.Bus,
		clock:    opts.Clock,
		tokens:   opts.Tokens,
		adminKey: opts.AdminKey,
		exporter: report.NewExporter(opts.Tasks),
		logger:   opts.Logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/export", s.handleTaskExport)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskRemove)

	// Events
	s.mux.HandleFunc("GET /api/events", s.handleEventList)
	s.mux.HandleFunc("GET /api/events/stream", s.handleEventStream)
	s.mux.HandleFunc("GET /api/events/verify", s.handleEventVerify)

	// Identity
	s.mux.HandleFunc("GET /api/actors", s.handleActorList)
	s.mux.HandleFunc("POST /api/auth/token", s.handleTokenIssue)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

var errUnauthorized = errors.New("missing or invalid bearer token")

// caller resolves the request's bearer token to a canonical identity.
func (s *Server) caller(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", errUnauthorized
	}
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return "", errUnauthorized
	}
	return s.disp.Identify(r.Context(), subject)
}

// statusFor maps an operation error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, task.ErrTaskAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, task.ErrTaskDoesNotExist), errors.Is(err, eventgraph.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrWrongOwner):
		return http.StatusForbidden
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.Any("err", err))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("write json", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
