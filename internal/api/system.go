package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tasks, err := s.tasks.Count(ctx)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	events, err := s.bus.Count(ctx)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	actors, err := s.actors.List(ctx)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":       tasks,
		"events":      events,
		"actors":      len(actors),
		"height":      s.clock.Height(),
		"subscribers": s.bus.Subscribers(),
	})
}

func (s *Server) handleActorList(w http.ResponseWriter, r *http.Request) {
	actors, err := s.actors.List(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actors)
}

// handleTokenIssue mints a bearer token for a subject. Only holders of the
// admin key may call it; with no admin key configured the route is closed.
func (s *Server) handleTokenIssue(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-Admin-Key")
	if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
		writeError(w, http.StatusForbidden, "admin key required")
		return
	}
	var req struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}
	token, err := s.tokens.Issue(req.Subject)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "subject": req.Subject})
}
