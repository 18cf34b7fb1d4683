package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"greenprint/internal/artifact"
	"greenprint/internal/logging"
	"greenprint/internal/session"
)

type startRequest struct {
	IndustryFocus       string `json:"industry_focus"`
	RegulatoryFramework string `json:"regulatory_framework"`
	TrainingLevel       string `json:"training_level"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

type statusResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step"`
	Error       string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleStart creates a session and launches its pipeline in the
// background. The response returns immediately with the session id.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sess, err := session.New(req.IndustryFocus, req.RegulatoryFramework, req.TrainingLevel)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.sessions.Add(sess)

	// The pipeline outlives the request; its own timeouts bound it.
	go func() {
		if err := s.service.Run(context.Background(), sess); err != nil {
			s.logger.Warn("session pipeline failed",
				zap.String("session_id", sess.ID), zap.Error(err))
		}
	}()

	logging.API("Training started: session=%s industry=%s", sess.ID, sess.IndustryFocus)
	writeJSON(w, http.StatusOK, startResponse{SessionID: sess.ID, Status: "started"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state, err := s.sessions.Get(id)
	if errors.Is(err, session.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		SessionID:   id,
		Status:      string(state.Status),
		Progress:    state.Progress,
		CurrentStep: state.CurrentStep,
		Error:       state.Error,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	state, err := s.sessions.Get(id)
	if errors.Is(err, session.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if state.Status != session.StatusCompleted {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "training not completed yet"})
		return
	}
	if state.PlaybookPath == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "playbook file not found"})
		return
	}
	if _, err := os.Stat(state.PlaybookPath); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "playbook file not found"})
		return
	}

	filename := filepath.Base(state.PlaybookPath)
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	http.ServeFile(w, r, state.PlaybookPath)
}

// handleArtifact returns the raw stored artifact for one stage.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	stage, err := artifact.ParseStage(vars["stage"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	a, err := s.store.Get(id, stage)
	if errors.Is(err, artifact.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "artifact not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load artifact"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type sessionSummary struct {
	SessionID           string `json:"session_id"`
	Status              string `json:"status"`
	Progress            int    `json:"progress"`
	IndustryFocus       string `json:"industry_focus"`
	RegulatoryFramework string `json:"regulatory_framework"`
	CreatedAt           string `json:"created_at"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	states := s.sessions.List()
	out := make([]sessionSummary, 0, len(states))
	for _, state := range states {
		out = append(out, sessionSummary{
			SessionID:           state.Session.ID,
			Status:              string(state.Status),
			Progress:            state.Progress,
			IndustryFocus:       state.Session.IndustryFocus,
			RegulatoryFramework: state.Session.RegulatoryFramework,
			CreatedAt:           state.Session.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"count":    len(out),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryAPI).Error("Failed to encode response: %v", err)
	}
}
