package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"k3rs/backend/internal/inspection"
	"k3rs/backend/internal/store"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := s.store.Dashboard(ctx, s.now())
	if err != nil {
		s.logger.Error("dashboard query failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load dashboard"})
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// filterFromQuery reads type, month, from and to.
func filterFromQuery(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	from, err := parseOptionalDate(q.Get("from"))
	if err != nil {
		return store.Filter{}, err
	}
	to, err := parseOptionalDate(q.Get("to"))
	if err != nil {
		return store.Filter{}, err
	}
	f := store.Filter{
		Type:  strings.TrimSpace(q.Get("type")),
		Month: strings.TrimSpace(q.Get("month")),
		From:  from,
		To:    to,
	}
	return f, f.Validate()
}

func (s *Server) handleInspections(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	records, err := s.store.ListRecords(ctx, filter)
	if err != nil {
		s.respondStoreError(w, err, "failed to list inspections")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": records, "total": len(records)})
}

type findingInput struct {
	Location       string `json:"location"`
	Finding        string `json:"finding"`
	HazardRisk     string `json:"hazard_risk"`
	Recommendation string `json:"recommendation"`
	Notes          string `json:"notes"`
}

func (in findingInput) toFinding() inspection.Finding {
	return inspection.Finding{
		Location:       strings.TrimSpace(in.Location),
		Finding:        strings.TrimSpace(in.Finding),
		HazardRisk:     strings.TrimSpace(in.HazardRisk),
		Recommendation: strings.TrimSpace(in.Recommendation),
		Notes:          strings.TrimSpace(in.Notes),
	}
}

func (in findingInput) empty() bool {
	return strings.TrimSpace(in.Location+in.Finding+in.HazardRisk+in.Recommendation+in.Notes) == ""
}

func (s *Server) handleCreateInspection(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type     string          `json:"inspection_type"`
		Date     inspection.Date `json:"inspection_date"`
		Findings []findingInput  `json:"findings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
		return
	}
	in.Type = strings.TrimSpace(in.Type)
	if in.Type == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "inspection_type is required"})
		return
	}

	rec := inspection.Record{Type: in.Type, Date: in.Date}
	for _, f := range in.Findings {
		if f.empty() {
			continue
		}
		rec.Findings = append(rec.Findings, f.toFinding())
	}

	userID, err := currentUserID(r)
	if err != nil {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.CreateInspection(ctx, rec, userID)
	if err != nil {
		s.respondStoreError(w, err, "failed to create inspection")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleInspection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := s.store.GetInspection(ctx, r.PathValue("id"))
	if err != nil {
		s.respondStoreError(w, err, "failed to load inspection")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteInspection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	keys, err := s.store.DeleteInspection(ctx, r.PathValue("id"))
	if err != nil {
		s.respondStoreError(w, err, "failed to delete inspection")
		return
	}
	if s.photos != nil {
		for _, key := range keys {
			if err := s.photos.Delete(ctx, key); err != nil {
				s.logger.Warn("photo object not removed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := s.store.GetInspection(ctx, r.PathValue("id"))
	if err != nil {
		s.respondStoreError(w, err, "failed to load findings")
		return
	}
	findings := make([]publicFinding, 0, len(rec.Findings))
	for _, f := range rec.Findings {
		n := len(f.Photos)
		f.Photos = nil
		findings = append(findings, publicFinding{Finding: f, PhotoCount: n})
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": findings})
}

// publicFinding is the unauthenticated view of a finding. Signed photo links
// are only served behind authentication.
type publicFinding struct {
	inspection.Finding
	PhotoCount int `json:"photo_count"`
}

func (s *Server) handleCreateFinding(w http.ResponseWriter, r *http.Request) {
	var in findingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
		return
	}
	if in.empty() {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "finding has no content"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.AddFinding(ctx, r.PathValue("id"), in.toFinding())
	if err != nil {
		s.respondStoreError(w, err, "failed to add finding")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, store.ErrDuplicate):
		respondJSON(w, http.StatusConflict, map[string]string{"error": "already exists"})
	case errors.Is(err, context.DeadlineExceeded):
		respondJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "request timed out"})
	default:
		s.logger.Error(msg, zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
	}
}
