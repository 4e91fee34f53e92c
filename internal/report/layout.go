package report

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"k3rs/backend/internal/inspection"
	"k3rs/backend/internal/institution"
)

const (
	reportTitle      = "LAPORAN TEMUAN K3RS"
	summaryTitle     = "RINGKASAN LAPORAN INSPEKSI K3RS"
	monthUnavailable = "BULAN TIDAK TERSEDIA"

	statusWithFindings    = "Ada Temuan"
	statusWithoutFindings = "Tidak Ada Temuan"

	photosUnavailable = "Gambar tidak dapat dimuat"
	photosNone        = "Tidak ada dokumentasi"

	maxSheetNameLen = 31
)

// SignatureParty is one rendered signature column.
type SignatureParty struct {
	Dateline string // only the second party carries it
	Heading  string
	Role     string
	Name     string
	NIPLine  string
}

// signatureParties resolves both signature columns. An override with a blank
// name is ignored entirely so a signature is never blank.
func signatureParties(p institution.Profile, override *inspection.Signatory, now time.Time) [2]SignatureParty {
	first := p.FirstSignatory
	if override != nil && strings.TrimSpace(override.Name) != "" {
		first.Name = strings.TrimSpace(override.Name)
		first.NIP = strings.TrimSpace(override.NIP)
	}
	second := p.SecondSignatory
	return [2]SignatureParty{
		{
			Heading: first.Heading,
			Role:    first.Role,
			Name:    first.Name,
			NIPLine: "NIP. " + OrPlaceholder(first.NIP),
		},
		{
			Dateline: FormatLocalizedToday(p.City, now),
			Heading:  second.Heading,
			Role:     second.Role,
			Name:     second.Name,
			NIPLine:  "NIP. " + OrPlaceholder(second.NIP),
		},
	}
}

// Section is one page-started group of the paginated report.
type Section struct {
	Subtitle string
	Period   string
	Rows     []SectionRow
}

// SectionRow is one finding as laid out in a section table.
type SectionRow struct {
	Number         int
	Date           string
	Location       string
	Finding        string
	HazardRisk     string
	Recommendation string
	Notes          string
	Photos         PhotoGrid
}

// BuildSections groups records per the chosen template and flattens every
// finding into numbered rows. Numbering restarts at 1 in each section. With
// no records a single empty section is produced.
func BuildSections(records []inspection.Record, opts inspection.ReportOptions) []Section {
	period := monthUnavailable
	if m := strings.TrimSpace(opts.Month); m != "" {
		period = upper(m)
	}

	var sections []Section
	switch opts.Template {
	case inspection.TemplateByType:
		for _, g := range GroupByType(records) {
			sections = append(sections, Section{
				Subtitle: upper(OrPlaceholder(g.Type)),
				Period:   period,
				Rows:     sectionRows(g.Records),
			})
		}
	default:
		for _, g := range GroupByTypeThenDate(records) {
			for _, d := range g.Dates {
				sections = append(sections, Section{
					Subtitle: upper(OrPlaceholder(g.Type) + " - " + d.Date),
					Period:   period,
					Rows:     sectionRows(d.Records),
				})
			}
		}
	}
	if len(sections) == 0 {
		sections = append(sections, Section{Subtitle: Placeholder, Period: period})
	}
	return sections
}

func sectionRows(records []inspection.Record) []SectionRow {
	var rows []SectionRow
	n := 1
	for _, rec := range records {
		date := FormatLocalizedDate(rec.Date.Time)
		for _, f := range rec.Findings {
			rows = append(rows, SectionRow{
				Number:         n,
				Date:           date,
				Location:       OrPlaceholder(f.Location),
				Finding:        OrPlaceholder(f.Finding),
				HazardRisk:     FormatBulletList(f.HazardRisk),
				Recommendation: FormatBulletList(f.Recommendation),
				Notes:          OrPlaceholder(f.Notes),
				Photos:         PlanPhotos(f.Photos, PDFPhotoCap),
			})
			n++
		}
	}
	return rows
}

// SummaryRow is one line of the workbook's summary sheet.
type SummaryRow struct {
	Number   int
	Type     string
	Date     string
	Findings int
	Photos   int
	Status   string
}

// BuildSummaryRows describes each record, in the order given.
func BuildSummaryRows(records []inspection.Record) []SummaryRow {
	rows := make([]SummaryRow, 0, len(records))
	for i, rec := range records {
		status := statusWithoutFindings
		if len(rec.Findings) > 0 {
			status = statusWithFindings
		}
		rows = append(rows, SummaryRow{
			Number:   i + 1,
			Type:     OrPlaceholder(rec.Type),
			Date:     FormatLocalizedDate(rec.Date.Time),
			Findings: len(rec.Findings),
			Photos:   rec.PhotoCount(),
			Status:   status,
		})
	}
	return rows
}

// Detail sheet grid, 1-based rows.
const (
	detailHeaderRow    = 13
	detailFirstDataRow = 14
	photoColumnIndex   = 3 // column D, zero-based

	rowBaseHeight     = 120.0
	rowPhotoBand      = 100.0
	rowPhotoMargin    = 40.0
	rowTextLineHeight = 20.0
	rowTextMargin     = 30.0
	maxRowHeight      = 409.0 // spreadsheet row height ceiling
)

// detailColumnWidths are the widths of columns A..F on a detail sheet.
var detailColumnWidths = [6]float64{5, 20, 25, 40, 20, 20}

// DetailSheet is one record's worksheet.
type DetailSheet struct {
	Name     string
	Subtitle string
	Rows     []DetailRow
}

// DetailRow is one finding on a detail sheet.
type DetailRow struct {
	Number         int
	SheetRow       int // 1-based worksheet row
	Location       string
	Finding        string
	HazardRisk     string
	Recommendation string
	Photos         PhotoGrid
	Height         float64
}

// BuildDetailSheets lays out one sheet per record, in the order given.
// Sheet names are unique across the workbook.
func BuildDetailSheets(records []inspection.Record) []DetailSheet {
	names := newSheetNamer()
	names.reserve(summarySheetName)

	sheets := make([]DetailSheet, 0, len(records))
	for _, rec := range records {
		date := FormatLocalizedDate(rec.Date.Time)
		sheet := DetailSheet{
			Name:     names.assign(sheetName(rec.Type, rec.Date.Raw())),
			Subtitle: upper(OrPlaceholder(rec.Type) + " - " + date),
		}
		for i, f := range rec.Findings {
			sheetRow := detailFirstDataRow + i
			row := DetailRow{
				Number:         i + 1,
				SheetRow:       sheetRow,
				Location:       OrPlaceholder(f.Location),
				Finding:        OrPlaceholder(f.Finding),
				HazardRisk:     FormatBulletList(f.HazardRisk),
				Recommendation: FormatBulletList(f.Recommendation),
				Photos:         PlanSheetPhotos(f.Photos, photoColumnIndex, sheetRow-1),
			}
			lines := max(
				wrappedLines(row.Location, detailColumnWidths[1]),
				wrappedLines(row.Finding, detailColumnWidths[2]),
				wrappedLines(row.HazardRisk, detailColumnWidths[4]),
				wrappedLines(row.Recommendation, detailColumnWidths[5]),
			)
			row.Height = RowHeight(len(row.Photos.Rows), lines)
			sheet.Rows = append(sheet.Rows, row)
		}
		sheets = append(sheets, sheet)
	}
	return sheets
}

// RowHeight is the detail-sheet row height in points for the given number of
// photo rows and wrapped text lines, capped at the spreadsheet maximum.
func RowHeight(photoRows, textLines int) float64 {
	h := math.Max(rowBaseHeight, math.Max(
		float64(photoRows)*rowPhotoBand+rowPhotoMargin,
		float64(textLines)*rowTextLineHeight+rowTextMargin,
	))
	return math.Min(h, maxRowHeight)
}

// wrappedLines estimates how many lines text occupies in a column of the
// given character width.
func wrappedLines(text string, width float64) int {
	perLine := int(width)
	if perLine < 1 {
		perLine = 1
	}
	total := 0
	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		if n == 0 {
			total++
			continue
		}
		total += (n + perLine - 1) / perLine
	}
	return total
}

// sheetName builds "<type>_<rawDate>" with characters Excel rejects replaced
// and the result truncated to the sheet-name ceiling.
func sheetName(kind, rawDate string) string {
	name := OrPlaceholder(kind) + "_" + OrPlaceholder(rawDate)
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, name)
	name = strings.Trim(name, "'")
	if name == "" {
		name = Placeholder
	}
	return truncateRunes(name, maxSheetNameLen)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// sheetNamer hands out workbook-unique sheet names. Excel compares names
// case-insensitively; a clash gets a "~N" suffix that still fits the ceiling.
type sheetNamer struct {
	used map[string]struct{}
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]struct{})}
}

func (s *sheetNamer) reserve(name string) {
	s.used[strings.ToLower(name)] = struct{}{}
}

func (s *sheetNamer) assign(base string) string {
	candidate := base
	for i := 2; ; i++ {
		if _, taken := s.used[strings.ToLower(candidate)]; !taken {
			break
		}
		suffix := fmt.Sprintf("~%d", i)
		candidate = truncateRunes(base, maxSheetNameLen-utf8.RuneCountInString(suffix)) + suffix
	}
	s.reserve(candidate)
	return candidate
}

// FlatRow is one finding in the single-sheet and CSV exports.
type FlatRow struct {
	Number         int
	Type           string
	Date           string
	Location       string
	Finding        string
	HazardRisk     string
	Recommendation string
	Photos         int
}

var flatHeader = []string{
	"NO", "JENIS INSPEKSI", "TANGGAL", "LOKASI", "TEMUAN", "BAHAYA/RISIKO", "REKOMENDASI", "JUMLAH FOTO",
}

// BuildFlatRows emits one row per finding across all records with a single
// running number, in input order.
func BuildFlatRows(records []inspection.Record) []FlatRow {
	var rows []FlatRow
	n := 1
	for _, rec := range records {
		date := FormatLocalizedDate(rec.Date.Time)
		for _, f := range rec.Findings {
			rows = append(rows, FlatRow{
				Number:         n,
				Type:           OrPlaceholder(rec.Type),
				Date:           date,
				Location:       OrPlaceholder(f.Location),
				Finding:        OrPlaceholder(f.Finding),
				HazardRisk:     FormatBulletList(f.HazardRisk),
				Recommendation: FormatBulletList(f.Recommendation),
				Photos:         len(f.Photos),
			})
			n++
		}
	}
	return rows
}
