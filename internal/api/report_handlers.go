package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"k3rs/backend/internal/inspection"
	"k3rs/backend/internal/report"
	"k3rs/backend/internal/store"
)

// exportTimeout bounds one export including every photo fetch.
const exportTimeout = 2 * time.Minute

type exportRequest struct {
	Format     string                `json:"format"`
	Template   string                `json:"template"`
	Month      string                `json:"month"`
	MonthLabel string                `json:"month_label"`
	Type       string                `json:"type"`
	From       string                `json:"from"`
	To         string                `json:"to"`
	Signatory  *inspection.Signatory `json:"signatory"`
}

// resolve splits the request into a record filter and report options. A
// YYYY-MM month filters records and, when no label is given, also names the
// period; any other month text is only a label.
func (in exportRequest) resolve() (report.Format, store.Filter, inspection.ReportOptions, error) {
	format, err := report.ParseFormat(firstNonEmpty(in.Format, string(report.FormatPDF)))
	if err != nil {
		return "", store.Filter{}, inspection.ReportOptions{}, err
	}
	from, err := parseOptionalDate(in.From)
	if err != nil {
		return "", store.Filter{}, inspection.ReportOptions{}, err
	}
	to, err := parseOptionalDate(in.To)
	if err != nil {
		return "", store.Filter{}, inspection.ReportOptions{}, err
	}

	filter := store.Filter{Type: strings.TrimSpace(in.Type), From: from, To: to}
	label := strings.TrimSpace(in.MonthLabel)
	month := strings.TrimSpace(in.Month)
	if derived, ok := report.MonthLabelFromFilter(month); ok {
		filter.Month = month
		if label == "" {
			label = derived
		}
	} else if label == "" {
		label = month
	}
	if err := filter.Validate(); err != nil {
		return "", store.Filter{}, inspection.ReportOptions{}, err
	}

	opts := inspection.ReportOptions{
		Month:     label,
		Template:  inspection.ParseTemplate(in.Template),
		Signatory: in.Signatory,
	}
	return format, filter, opts, nil
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "report export is not configured"})
		return
	}

	var in exportRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
		return
	}
	format, filter, opts, err := in.resolve()
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	loadCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	records, err := s.store.ListRecords(loadCtx, filter)
	cancel()
	if err != nil {
		s.respondStoreError(w, err, "failed to load inspections")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	art, err := s.exporter.Export(ctx, format, records, opts)
	if err != nil {
		if errors.Is(err, report.ErrUnknownFormat) {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error("report export failed", zap.String("format", string(format)), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate report"})
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", art.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Data); err != nil {
		s.logger.Warn("report download interrupted", zap.String("filename", art.Filename), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}
