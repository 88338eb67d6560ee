package server

import (
	"net/http"
	"strconv"

	"github.com/rcliao/ripple-memory/internal/model"
)

type addMemoryRequest struct {
	Summary      string       `json:"summary"`
	Conversation []model.Turn `json:"conversation"`
}

type searchRequest struct {
	Query  string `json:"query"`
	K      int    `json:"k"`
	Budget int    `json:"budget"`
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req addMemoryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	rec, err := s.store.Add(r.Context(), req.Summary, req.Conversation)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "offset must be an integer")
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   s.store.Count(),
		"offset":  offset,
		"records": s.store.Records(offset, limit),
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(r.PathValue("position"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "position must be an integer")
		return
	}
	rec, err := s.store.Get(pos)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.K == 0 {
		req.K = s.searchK
	}
	results, err := s.store.Search(r.Context(), req.Query, req.K)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   req.Query,
		"results": results,
	})
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.K == 0 {
		req.K = s.searchK
	}
	if req.Budget == 0 {
		req.Budget = s.recallBudget
	}
	text, err := s.store.Recall(r.Context(), req.Query, req.K, req.Budget)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"memory": text})
}
