package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/redactor/internal/export"
	"github.com/raaihank/redactor/internal/options"
	"github.com/raaihank/redactor/internal/workspace"
)

const maxBodyBytes = 16 << 20

type createResponse struct {
	ID    string          `json:"id"`
	State workspace.State `json:"state"`
}

type textRequest struct {
	Text *string `json:"text"`
}

type submitRequest struct {
	Text *string `json:"text"`
}

type optionRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// handleHealth reports liveness and, when configured, the service probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			body["service"] = "unreachable"
			body["service_error"] = err.Error()
		} else {
			body["service"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"name":            "redactor",
		"version":         s.deps.Version,
		"uptime":          time.Since(s.started).Round(time.Second).String(),
		"service_url":     s.config.Service.BaseURL,
		"workspaces":      s.registry.Len(),
		"max_workspaces":  s.config.Server.MaxWorkspaces,
		"cache_enabled":   s.config.Cache.Enabled,
		"history_enabled": s.config.History.Enabled,
		"categories":      options.Categories(),
	}
	if s.wsHub != nil {
		info["websocket"] = s.wsHub.GetStats()
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.registry.Create()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.WithRequestID(getRequestID(r.Context())).Info("Workspace created",
		zap.String("workspace_id", ws.ID()),
		zap.Int("workspaces", s.registry.Len()))
	writeJSON(w, http.StatusCreated, createResponse{ID: ws.ID(), State: ws.State()})
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Remove(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetText(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req textRequest
	if err := decodeBody(w, r, &req); err != nil || req.Text == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"text\": string}")
		return
	}
	ws.SetText(*req.Text)
	writeJSON(w, http.StatusOK, ws.State())
}

func (s *Server) handleUpdateOption(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req optionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be {\"field\": string, \"value\": bool|string}")
		return
	}
	field, err := options.ParseField(req.Field)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ws.UpdateOption(field, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

// handleSubmit blocks until the submission settles. An optional
// {"text": string} body replaces the text first. The call outlives a
// dropped HTTP connection; Clear, DELETE and the service timeout still end it.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "body must be empty or {\"text\": string}")
		return
	}
	if req.Text != nil {
		ws.SetText(*req.Text)
	}

	state, err := ws.Submit(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, workspace.ErrSubmissionInFlight):
		writeJSON(w, http.StatusConflict, state)
	case errors.Is(err, workspace.ErrClosed):
		writeError(w, http.StatusGone, err.Error())
	default:
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ws.Clear()
	writeJSON(w, http.StatusOK, ws.State())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	result, ok := ws.Result()
	if !ok {
		writeError(w, http.StatusNotFound, "no result to download")
		return
	}
	export.ServeDownload(w, result)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "workspace not found")
	}
	return ws, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
