package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"seasonstay/internal/api/problem"
	"seasonstay/internal/geocoding"
	"seasonstay/internal/models"
	"seasonstay/internal/search"
	"seasonstay/internal/session"
)

// waitLimit bounds ?wait=true requests
const waitLimit = 10 * time.Second

// createSessionRequest is the optional body of POST /api/sessions
type createSessionRequest struct {
	Position *geocoding.PositionReport `json:"position"`
}

// CreateSession handles POST /api/sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.invalid(w, r, fmt.Errorf("invalid body: %w", err))
		return
	}

	s := h.sessions.Create(req.Position)
	h.respondSession(w, r, s, http.StatusCreated)
}

// GetSession handles GET /api/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondSession(w, r, s, http.StatusOK)
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "id")) {
		h.sessionNotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetSessionQuery handles PUT /api/sessions/{id}/query. The lookup runs
// after the debounce delay; pass ?wait=true to get the suggestions back.
func (h *Handlers) SetSessionQuery(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.invalid(w, r, fmt.Errorf("invalid body: %w", err))
		return
	}
	s.Controller.SetQuery(req.Query)
	h.respondSession(w, r, s, http.StatusOK)
}

// SelectSessionPlace handles POST /api/sessions/{id}/select
func (h *Handlers) SelectSessionPlace(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var suggestion models.PlaceSuggestion
	if err := json.NewDecoder(r.Body).Decode(&suggestion); err != nil {
		h.invalid(w, r, fmt.Errorf("invalid body: %w", err))
		return
	}
	if err := s.Controller.SelectSuggestion(suggestion); err != nil {
		h.invalid(w, r, err)
		return
	}
	h.respondSession(w, r, s, http.StatusOK)
}

// filtersRequest is the body of PATCH /api/sessions/{id}/filters. Dates
// accept the same formats as the listings query.
type filtersRequest struct {
	RadiusKm   *float64               `json:"radius_km"`
	PriceMin   *float64               `json:"price_min"`
	PriceMax   *float64               `json:"price_max"`
	Types      *[]models.PropertyType `json:"types"`
	Partners   *[]string              `json:"partners"`
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	ClearDates bool                   `json:"clear_dates"`
}

// PatchSessionFilters handles PATCH /api/sessions/{id}/filters. Values are
// clamped, never rejected.
func (h *Handlers) PatchSessionFilters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req filtersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.invalid(w, r, fmt.Errorf("invalid body: %w", err))
		return
	}

	patch := search.FilterPatch{
		RadiusKm:   req.RadiusKm,
		PriceMin:   req.PriceMin,
		PriceMax:   req.PriceMax,
		Types:      req.Types,
		Partners:   req.Partners,
		ClearDates: req.ClearDates,
	}
	if req.From != "" || req.To != "" {
		from, to := req.From, req.To
		if from == "" {
			from = to
		}
		if to == "" {
			to = from
		}
		start, err := search.ParseDate(from)
		if err != nil {
			h.invalid(w, r, fmt.Errorf("from: %w", err))
			return
		}
		end, err := search.ParseDate(to)
		if err != nil {
			h.invalid(w, r, fmt.Errorf("to: %w", err))
			return
		}
		patch.Dates = &models.DateRange{Start: start, End: end}
	}

	s.Controller.Apply(patch)
	h.respondSession(w, r, s, http.StatusOK)
}

// ToggleSessionPanel handles POST /api/sessions/{id}/panels/{panel}
func (h *Handlers) ToggleSessionPanel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	panel, err := search.ParsePanel(chi.URLParam(r, "panel"))
	if err != nil {
		h.invalid(w, r, err)
		return
	}
	s.Controller.TogglePanel(panel)
	h.respondSession(w, r, s, http.StatusOK)
}

// SessionClick handles POST /api/sessions/{id}/click
func (h *Handlers) SessionClick(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var click search.Click
	if err := json.NewDecoder(r.Body).Decode(&click); err != nil {
		h.invalid(w, r, fmt.Errorf("invalid body: %w", err))
		return
	}
	switch click.Target {
	case search.TargetOutside, search.TargetTrigger, search.TargetContent:
	default:
		h.invalid(w, r, fmt.Errorf("unknown click target %q", click.Target))
		return
	}
	s.Controller.Click(click)
	h.respondSession(w, r, s, http.StatusOK)
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		h.sessionNotFound(w, r)
		return nil, false
	}
	return s, true
}

func (h *Handlers) sessionNotFound(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Session not found", nil, h.env,
		problem.WithDetail("the search session expired or never existed"))
}

// respondSession writes the session snapshot, first waiting for pending
// work when the client asked for it.
func (h *Handlers) respondSession(w http.ResponseWriter, r *http.Request, s *session.Session, status int) {
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), waitLimit)
		defer cancel()
		if err := s.Wait(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return
		}
	}
	writeJSON(w, status, s.Snapshot())
}
