// Package inspection holds the K3RS inspection records that flow from the
// data store into the report engine. Values are read-only once constructed.
package inspection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record is one inspection with its ordered findings.
type Record struct {
	ID       string    `json:"id"`
	Type     string    `json:"inspection_type"`
	Date     Date      `json:"inspection_date"`
	Findings []Finding `json:"findings"`
}

// Finding is one observed hazard. Optional text fields are empty when absent;
// blank and absent are rendered identically.
type Finding struct {
	ID             string  `json:"id,omitempty"`
	Location       string  `json:"location,omitempty"`
	Finding        string  `json:"finding,omitempty"`
	HazardRisk     string  `json:"hazard_risk,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	Photos         []Photo `json:"photos,omitempty"`
}

// Photo references image bytes by an externally resolvable URL.
type Photo struct {
	SignedURL string `json:"signed_url"`
}

// Signatory overrides the first signature block of a report.
type Signatory struct {
	Name string `json:"name,omitempty"`
	NIP  string `json:"nip,omitempty"`
}

// Template selects how the paginated report groups records into sections.
type Template string

const (
	TemplateByType     Template = "by-type"
	TemplateByTypeDate Template = "by-type-date"
)

// ParseTemplate maps free text onto a Template, defaulting to by-type-date.
func ParseTemplate(v string) Template {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(TemplateByType), "type", "flat":
		return TemplateByType
	default:
		return TemplateByTypeDate
	}
}

// ReportOptions configures a single export call.
type ReportOptions struct {
	Month     string     `json:"month,omitempty"`
	Signatory *Signatory `json:"signatory,omitempty"`
	Template  Template   `json:"template,omitempty"`
}

// PhotoCount returns the number of photos across every finding of r.
func (r Record) PhotoCount() int {
	n := 0
	for _, f := range r.Findings {
		n += len(f.Photos)
	}
	return n
}

const dateLayout = "2006-01-02"

// Date is a calendar date carried in local wall-clock terms. It decodes from
// "YYYY-MM-DD" or RFC 3339 and encodes back to "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight local time.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.Local)}
}

// ParseDate accepts "YYYY-MM-DD" or an RFC 3339 timestamp.
func ParseDate(v string) (Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Date{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, v, time.Local); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", v)
	}
	return Date{Time: t}, nil
}

// Raw returns the date as stored, "YYYY-MM-DD", or "" for the zero date.
func (d Date) Raw() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Raw())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("inspection date: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
