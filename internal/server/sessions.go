package server

import (
	"net/http"

	"github.com/rcliao/ripple-memory/internal/model"
	"github.com/rcliao/ripple-memory/internal/session"
)

type archiveRequest struct {
	Summary string `json:"summary"`
}

func (s *Server) handleNewSession(w http.ResponseWriter, _ *http.Request) {
	rec := s.sessions.GetOrCreate(session.NewID())
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.GetOrCreate(r.PathValue("id")))
}

func (s *Server) handleAppendTurn(w http.ResponseWriter, r *http.Request) {
	var turn model.Turn
	if err := decode(w, r, &turn); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if turn.Role == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "role is required")
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.AppendTurn(r.PathValue("id"), turn))
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Clear(r.PathValue("id")))
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	res, err := s.archiver.Archive(r.Context(), r.PathValue("id"), req.Summary)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
