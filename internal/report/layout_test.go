package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k3rs/backend/internal/inspection"
	"k3rs/backend/internal/institution"
)

func TestGroupByType_FirstSeenOrder(t *testing.T) {
	recs := []inspection.Record{
		{ID: "1", Type: "B"}, {ID: "2", Type: "A"}, {ID: "3", Type: "B"}, {ID: "4", Type: "C"}, {ID: "5", Type: "A"},
	}
	groups := GroupByType(recs)

	var keys []string
	ids := map[string][]string{}
	for _, g := range groups {
		keys = append(keys, g.Type)
		for _, r := range g.Records {
			ids[g.Type] = append(ids[g.Type], r.ID)
		}
	}
	assert.Equal(t, []string{"B", "A", "C"}, keys)
	want := map[string][]string{"B": {"1", "3"}, "A": {"2", "5"}, "C": {"4"}}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("records per group (-want +got):\n%s", diff)
	}
}

func TestGroupByTypeThenDate(t *testing.T) {
	groups := GroupByTypeThenDate(sampleRecords())
	require.Len(t, groups, 2)

	assert.Equal(t, "Kebakaran", groups[0].Type)
	require.Len(t, groups[0].Dates, 1)
	assert.Equal(t, "10 Maret 2025", groups[0].Dates[0].Date)
	require.Len(t, groups[0].Dates[0].Records, 2)
	assert.Equal(t, "r1", groups[0].Dates[0].Records[0].ID)
	assert.Equal(t, "r3", groups[0].Dates[0].Records[1].ID)

	assert.Equal(t, "Kelistrikan", groups[1].Type)
}

func TestSortByDate_CopiesAndIsStable(t *testing.T) {
	in := sampleRecords()
	out := SortByDate(in)

	assert.Equal(t, []string{"r2", "r1", "r3"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "r1", in[0].ID, "input must not be reordered")
}

func TestBuildSections_NumberingRestartsPerSection(t *testing.T) {
	sections := BuildSections(sampleRecords(), inspection.ReportOptions{Month: "Maret 2025"})
	require.Len(t, sections, 2)

	first := sections[0]
	assert.Equal(t, "KEBAKARAN - 10 MARET 2025", first.Subtitle)
	assert.Equal(t, "MARET 2025", first.Period)
	require.Len(t, first.Rows, 3)
	for i, r := range first.Rows {
		assert.Equal(t, i+1, r.Number)
	}
	assert.Equal(t, "Tabung gas bocor", first.Rows[2].Finding)
	assert.Equal(t, "• Kebakaran tidak tertangani\n• Cedera", first.Rows[0].HazardRisk)
	assert.Equal(t, "Ganti APAR", first.Rows[0].Recommendation)
	assert.Equal(t, 3, first.Rows[0].Photos.Count())

	second := sections[1]
	require.Len(t, second.Rows, 1)
	assert.Equal(t, 1, second.Rows[0].Number)
}

func TestBuildSections_ByTypeTemplate(t *testing.T) {
	recs := sampleRecords()
	recs[2].Date = inspection.NewDate(2025, time.March, 11)

	sections := BuildSections(recs, inspection.ReportOptions{Template: inspection.TemplateByType})
	require.Len(t, sections, 2)
	assert.Equal(t, "KEBAKARAN", sections[0].Subtitle)
	assert.Equal(t, monthUnavailable, sections[0].Period)
	require.Len(t, sections[0].Rows, 3)
	assert.Equal(t, "11 Maret 2025", sections[0].Rows[2].Date)
}

func TestBuildSections_BlankFieldsRenderPlaceholder(t *testing.T) {
	recs := []inspection.Record{{Findings: []inspection.Finding{{}}}}

	sections := BuildSections(recs, inspection.ReportOptions{Month: "  "})
	require.Len(t, sections, 1)
	assert.Equal(t, "- - -", sections[0].Subtitle)
	assert.Equal(t, monthUnavailable, sections[0].Period)

	row := sections[0].Rows[0]
	for _, v := range []string{row.Date, row.Location, row.Finding, row.HazardRisk, row.Recommendation, row.Notes} {
		assert.Equal(t, Placeholder, v)
	}
	assert.True(t, row.Photos.Placeholder)
}

func TestBuildSections_NoRecords(t *testing.T) {
	sections := BuildSections(nil, inspection.ReportOptions{})
	require.Len(t, sections, 1)
	assert.Empty(t, sections[0].Rows)
}

func TestSignatureParties(t *testing.T) {
	profile := institution.Default()
	now := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)

	parties := signatureParties(profile, &inspection.Signatory{Name: "Dr. X", NIP: "NIP-1"}, now)
	assert.Equal(t, "Dr. X", parties[0].Name)
	assert.Equal(t, "NIP. NIP-1", parties[0].NIPLine)
	assert.Empty(t, parties[0].Dateline)
	assert.Equal(t, "Lubuk Alung, 20 Maret 2025", parties[1].Dateline)
	assert.Equal(t, profile.SecondSignatory.Name, parties[1].Name)

	parties = signatureParties(profile, nil, now)
	assert.Equal(t, profile.FirstSignatory.Name, parties[0].Name)
	assert.Equal(t, "NIP. "+profile.FirstSignatory.NIP, parties[0].NIPLine)

	parties = signatureParties(profile, &inspection.Signatory{NIP: "ignored"}, now)
	assert.Equal(t, profile.FirstSignatory.Name, parties[0].Name)
	assert.Equal(t, "NIP. "+profile.FirstSignatory.NIP, parties[0].NIPLine)

	parties = signatureParties(profile, &inspection.Signatory{Name: "Dr. Y"}, now)
	assert.Equal(t, "NIP. -", parties[0].NIPLine)
}

func TestBuildSummaryRows(t *testing.T) {
	recs := sampleRecords()
	recs = append(recs, inspection.Record{Type: "Air", Date: inspection.NewDate(2025, time.March, 1)})

	rows := BuildSummaryRows(recs)
	require.Len(t, rows, 4)
	assert.Equal(t, SummaryRow{Number: 1, Type: "Kebakaran", Date: "10 Maret 2025", Findings: 2, Photos: 3, Status: "Ada Temuan"}, rows[0])
	assert.Equal(t, "Tidak Ada Temuan", rows[3].Status)
	assert.Zero(t, rows[3].Photos)
}

func TestBuildDetailSheets(t *testing.T) {
	sheets := BuildDetailSheets(SortByDate(sampleRecords()))
	require.Len(t, sheets, 3)

	assert.Equal(t, "Kelistrikan_2025-03-02", sheets[0].Name)
	assert.Equal(t, "Kebakaran_2025-03-10", sheets[1].Name)
	assert.Equal(t, "Kebakaran_2025-03-10~2", sheets[2].Name)
	assert.Equal(t, "KEBAKARAN - 10 MARET 2025", sheets[1].Subtitle)

	rows := sheets[1].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, 14, rows[0].SheetRow)
	assert.Equal(t, 15, rows[1].SheetRow)
	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, 2, rows[1].Number)
	assert.InDelta(t, 240.0, rows[0].Height, 1e-9) // two photo rows
	assert.InDelta(t, 120.0, rows[1].Height, 1e-9)

	slots := rows[0].Photos.Slots()
	require.Len(t, slots, 3)
	assert.InDelta(t, 13.01, slots[0].Anchor.Row, 1e-9)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Kebakaran_2025-03-10", sheetName("Kebakaran", "2025-03-10"))
	assert.Equal(t, "A-B-C_2025-03-10", sheetName("A/B?C", "2025-03-10"))
	assert.Equal(t, "-_-", sheetName("", ""))

	long := sheetName(strings.Repeat("Inspeksi ", 6), "2025-03-10")
	assert.Equal(t, maxSheetNameLen, len([]rune(long)))
}

func TestSheetNamer_DisambiguatesTruncatedClashes(t *testing.T) {
	n := newSheetNamer()
	n.reserve(summarySheetName)

	base := sheetName(strings.Repeat("x", 40), "2025-01-01")
	a := n.assign(base)
	b := n.assign(base)
	c := n.assign(strings.ToUpper(base))

	assert.Equal(t, base, a)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(b, "~2"))
	assert.True(t, strings.HasSuffix(c, "~3"))
	for _, name := range []string{a, b, c} {
		assert.LessOrEqual(t, len([]rune(name)), maxSheetNameLen)
	}

	assert.Equal(t, "ringkasan inspeksi~2", n.assign("ringkasan inspeksi"))
}

func TestRowHeight(t *testing.T) {
	assert.InDelta(t, 120.0, RowHeight(0, 1), 1e-9)
	assert.InDelta(t, 240.0, RowHeight(2, 1), 1e-9)
	assert.InDelta(t, 340.0, RowHeight(3, 2), 1e-9)
	assert.InDelta(t, 230.0, RowHeight(1, 10), 1e-9)
	assert.InDelta(t, maxRowHeight, RowHeight(0, 40), 1e-9)
}

func TestWrappedLines(t *testing.T) {
	assert.Equal(t, 1, wrappedLines("-", 20))
	assert.Equal(t, 2, wrappedLines(strings.Repeat("a", 21), 20))
	assert.Equal(t, 3, wrappedLines("• a\n• b\n• c", 20))
}

func TestBuildFlatRows(t *testing.T) {
	rows := BuildFlatRows(sampleRecords())
	require.Len(t, rows, 4)
	for i, r := range rows {
		assert.Equal(t, i+1, r.Number)
	}
	assert.Equal(t, "Kelistrikan", rows[2].Type)
	assert.Equal(t, 3, rows[0].Photos)
	assert.Equal(t, "-", rows[1].HazardRisk)
}
