// Package handlers implements the HTTP handlers of the RNAlens hosting
// surface. Each conversation session is an explicit resource: the
// orchestrating caller creates one, runs query-then-plot turns against
// it, and deletes it on teardown. Handlers never share plot state
// across sessions.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/rnalens/rnalens/internal/config"
	"github.com/rnalens/rnalens/internal/plotcache"
	"github.com/rnalens/rnalens/pkg/contracts"
	"github.com/rnalens/rnalens/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Gateway     contracts.QueryGateway
	Sessions    *plotcache.Registry
	Renderer    contracts.PlotRenderer
	PreviewRows int
}

// New creates a Handlers instance with all dependencies.
func New(gw contracts.QueryGateway, sessions *plotcache.Registry, renderer contracts.PlotRenderer, previewRows int) *Handlers {
	if previewRows <= 0 {
		previewRows = 20
	}
	return &Handlers{
		Gateway:     gw,
		Sessions:    sessions,
		Renderer:    renderer,
		PreviewRows: previewRows,
	}
}

// ── Session Handlers ─────────────────────────────────────────

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := h.Sessions.Create()
	log.Info().Str("session", id).Msg("session created")
	respondJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	h.Sessions.Delete(id)
	log.Info().Str("session", id).Msg("session deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ── Schema Handlers ──────────────────────────────────────────

func (h *Handlers) GetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.Gateway.Schema(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"tables":      schema,
		"description": schema.Describe(),
	})
}

func (h *Handlers) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.Gateway.RefreshSchema(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tables": schema})
}

func (h *Handlers) SampleValues(w http.ResponseWriter, r *http.Request) {
	perColumn := 5
	if q := r.URL.Query().Get("per_column"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			perColumn = n
		}
	}
	samples, err := h.Gateway.SampleValues(r.Context(), perColumn)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"samples": samples})
}

// ── Query Handler ────────────────────────────────────────────

// queryRequest is one query turn. Intent, tables, and filter are
// provenance supplied by the orchestrating caller; the core does not
// interpret free text itself.
type queryRequest struct {
	Query             string    `json:"query"`
	Intent            string    `json:"intent,omitempty"`
	Tables            []string  `json:"tables,omitempty"`
	Filter            string    `json:"filter,omitempty"`
	VarianceExplained []float64 `json:"variance_explained,omitempty"`
}

func (h *Handlers) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.session(w, r)
	if !ok {
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.TurnTimeout)
	defer cancel()

	result, err := h.Gateway.Execute(ctx, req.Query)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Store only after success: a failed or timed-out turn leaves the
	// session's plot state unchanged.
	qc := &models.QueryContext{
		Tables:            req.Tables,
		Filter:            req.Filter,
		Intent:            req.Intent,
		VarianceExplained: req.VarianceExplained,
	}
	cache.Store(result, qc)

	respondJSON(w, http.StatusOK, map[string]any{
		"columns":   result.Columns,
		"row_count": result.RowCount,
		"truncated": result.Truncated,
		"preview":   result.Preview(h.PreviewRows),
	})
}

// ── Plot Handler ─────────────────────────────────────────────

type plotRequest struct {
	Kind    string         `json:"kind"`
	Options map[string]any `json:"options,omitempty"`
}

func (h *Handlers) CreatePlot(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.session(w, r)
	if !ok {
		return
	}

	var req plotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := models.ParsePlotKind(req.Kind)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.TurnTimeout)
	defer cancel()

	artifact, err := h.Renderer.Render(ctx, cache, kind, models.DecodeOptions(req.Options))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"artifact": artifact,
		"url":      "/plots/" + artifact.Filename,
	})
}

// ── Helpers ──────────────────────────────────────────────────

// session resolves the cache for the request's session ID, responding
// 404 for unknown sessions.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*plotcache.Cache, bool) {
	id := chi.URLParam(r, "sessionID")
	cache, ok := h.Sessions.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown session: "+id)
		return nil, false
	}
	return cache, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message})
}

// respondServiceError maps core errors onto HTTP statuses and includes
// the taxonomy kind plus whether the failure is environment-class, so
// the presentation layer can choose retry vs re-ask-the-user.
func respondServiceError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), map[string]any{
		"error":     err.Error(),
		"kind":      models.ErrorKind(err),
		"retryable": models.Environmental(err),
	})
}

func statusFor(err error) int {
	var toErr *models.TimeoutError
	if errors.As(err, &toErr) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch models.ErrorKind(err) {
	case "query_error", "unsupported_plot_kind":
		return http.StatusBadRequest
	case "missing_columns":
		return http.StatusUnprocessableEntity
	case "no_data":
		return http.StatusConflict
	case "connection_error":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
