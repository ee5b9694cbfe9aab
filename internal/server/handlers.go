package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"orgpulse/internal/drilldown"
	"orgpulse/internal/kpi"
	"orgpulse/internal/personnel"
)

type sessionResponse struct {
	SessionID string `json:"session_id"`
	kpi.Dashboard
}

type createSessionRequest struct {
	Path []string `json:"path"`
}

type selectRequest struct {
	ID   string `json:"id"`
	Tier *int   `json:"tier"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metrics.Instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/select", s.handleSelect).Methods(http.MethodPost)
	r.HandleFunc("/people/{id}/kpi", s.handlePersonKPI).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": s.RecordCount(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id, dash, err := s.CreateSession(req.Path)
	if err != nil {
		s.writeSelectionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, Dashboard: dash})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	dash, err := s.Dashboard(id)
	if err != nil {
		s.writeSelectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Dashboard: dash})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.CloseSession(mux.Vars(r)["id"]); err != nil {
		s.writeSelectionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" || req.Tier == nil {
		writeError(w, http.StatusBadRequest, "id and tier are required")
		return
	}
	dash, err := s.Select(id, req.ID, personnel.Tier(*req.Tier))
	if err != nil {
		s.writeSelectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Dashboard: dash})
}

func (s *Server) handlePersonKPI(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.Summary(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) writeSelectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, drilldown.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
