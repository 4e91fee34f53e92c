package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder is rendered wherever an optional value is blank or absent.
const Placeholder = "-"

const bulletGlyph = "•"

var monthNames = [12]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

var upperCaser = cases.Upper(language.Indonesian)

// OrPlaceholder is the single blank-to-placeholder normalisation applied to
// every optional text field.
func OrPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return Placeholder
	}
	return v
}

// FormatLocalizedDate renders "<day> <month> <year>" in Indonesian using the
// date's own wall clock; no timezone conversion happens.
func FormatLocalizedDate(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return fmt.Sprintf("%d %s %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

// FormatMonthYear renders "<MONTH> <year>", e.g. "MARET 2025".
func FormatMonthYear(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return fmt.Sprintf("%s %d", upper(monthNames[t.Month()-1]), t.Year())
}

// FormatBulletList turns a semicolon-delimited list into display text. A
// single item is returned as-is without a bullet.
func FormatBulletList(text string) string {
	items := splitList(text)
	switch len(items) {
	case 0:
		return Placeholder
	case 1:
		return items[0]
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = bulletGlyph + " " + item
	}
	return strings.Join(lines, "\n")
}

func splitList(text string) []string {
	parts := strings.Split(text, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		item := strings.TrimSpace(p)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func upper(s string) string {
	return upperCaser.String(s)
}

// FormatLocalizedToday is the dateline used in signature blocks.
func FormatLocalizedToday(city string, now time.Time) string {
	return fmt.Sprintf("%s, %s", city, FormatLocalizedDate(now))
}

// MonthLabelFromFilter derives the period label from a "YYYY-MM" filter value.
func MonthLabelFromFilter(v string) (string, bool) {
	t, err := time.Parse("2006-01", strings.TrimSpace(v))
	if err != nil {
		return "", false
	}
	return FormatMonthYear(t), true
}
