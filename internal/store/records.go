package store

import (
	"fmt"
	"strings"
	"time"

	"k3rs/backend/internal/inspection"
)

type inspectionRow struct {
	ID   string
	Type string
	Date *time.Time
}

type findingRow struct {
	ID             string
	InspectionID   string
	Location       string
	Finding        string
	HazardRisk     string
	Recommendation string
	Notes          string
}

type photoRow struct {
	FindingID string
	Key       string
	URL       string
}

// assembleRecords attaches findings and photos to their parents. Child order
// within a parent follows the input order; orphans are dropped.
func assembleRecords(heads []inspectionRow, findings []findingRow, photos []photoRow) []inspection.Record {
	photosByFinding := make(map[string][]inspection.Photo)
	for _, p := range photos {
		photosByFinding[p.FindingID] = append(photosByFinding[p.FindingID], inspection.Photo{SignedURL: p.URL})
	}

	findingsByInspection := make(map[string][]inspection.Finding)
	for _, f := range findings {
		findingsByInspection[f.InspectionID] = append(findingsByInspection[f.InspectionID], inspection.Finding{
			ID:             f.ID,
			Location:       f.Location,
			Finding:        f.Finding,
			HazardRisk:     f.HazardRisk,
			Recommendation: f.Recommendation,
			Notes:          f.Notes,
			Photos:         photosByFinding[f.ID],
		})
	}

	out := make([]inspection.Record, 0, len(heads))
	for _, h := range heads {
		rec := inspection.Record{ID: h.ID, Type: h.Type, Findings: findingsByInspection[h.ID]}
		if h.Date != nil {
			rec.Date = inspection.NewDate(h.Date.Year(), h.Date.Month(), h.Date.Day())
		}
		out = append(out, rec)
	}
	return out
}

// Filter narrows record listings. Month is "YYYY-MM"; From and To are
// inclusive. Empty fields do not filter.
type Filter struct {
	Type  string
	Month string
	From  inspection.Date
	To    inspection.Date
}

func (f Filter) where() (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if t := strings.TrimSpace(f.Type); t != "" {
		add("inspection_type = $%d", t)
	}
	if m := strings.TrimSpace(f.Month); m != "" {
		start, err := time.Parse("2006-01", m)
		if err != nil {
			return "", nil, fmt.Errorf("invalid month %q: want YYYY-MM", m)
		}
		add("inspection_date >= $%d", start.Format("2006-01-02"))
		add("inspection_date < $%d", start.AddDate(0, 1, 0).Format("2006-01-02"))
	}
	if !f.From.IsZero() {
		add("inspection_date >= $%d", f.From.Raw())
	}
	if !f.To.IsZero() {
		add("inspection_date <= $%d", f.To.Raw())
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return "", nil, fmt.Errorf("invalid range: %s is after %s", f.From.Raw(), f.To.Raw())
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// Validate reports a malformed month or an inverted range.
func (f Filter) Validate() error {
	_, _, err := f.where()
	return err
}
