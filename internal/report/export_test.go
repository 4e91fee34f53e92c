package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"k3rs/backend/internal/inspection"
	"k3rs/backend/internal/institution"
)

func newTestExporter(t *testing.T, opts ...Option) (*Exporter, *stubFetcher, *recordingObserver) {
	t.Helper()
	fetcher := &stubFetcher{payload: map[string][]byte{
		"http://photos.test/ok-1.png": testPNG(t, 40, 30),
		"http://photos.test/ok-2.png": testPNG(t, 30, 40),
	}}
	obs := newRecordingObserver()
	opts = append([]Option{WithClock(fixedClock), WithObserver(obs)}, opts...)
	return NewExporter(institution.Default(), fetcher, opts...), fetcher, obs
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"pdf": FormatPDF, " XLSX ": FormatWorkbook, "xlsx-simple": FormatWorkbookSimple, "csv": FormatCSV, "excel": FormatWorkbook,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExport_UnknownFormat(t *testing.T) {
	e, _, _ := newTestExporter(t)
	_, err := e.Export(context.Background(), Format("docx"), nil, inspection.ReportOptions{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExportPDF(t *testing.T) {
	e, fetcher, obs := newTestExporter(t)

	art, err := e.ExportPDF(context.Background(), sampleRecords(), inspection.ReportOptions{
		Month:     "Maret 2025",
		Signatory: &inspection.Signatory{Name: "Dr. X", NIP: "NIP-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Laporan_Temuan_K3RS_2025-03-20.pdf", art.Filename)
	assert.Equal(t, "application/pdf", art.ContentType)
	assert.True(t, bytes.HasPrefix(art.Data, []byte("%PDF")))

	// Every planned photo was attempted in order, the broken ones included.
	assert.Equal(t, []string{
		"http://photos.test/ok-1.png",
		"http://photos.test/broken.png",
		"http://photos.test/ok-2.png",
		"http://photos.test/broken.png",
	}, fetcher.Calls())
	assert.Equal(t, 2, obs.photosOK)
	assert.Equal(t, 2, obs.photosKO)
	assert.Equal(t, 1, obs.exports[FormatPDF])
	assert.Zero(t, obs.failures)
}

func TestPDFDocument_SignatureText(t *testing.T) {
	profile := institution.Default()
	doc := newPDFDocument(fixedNow)
	doc.pdf.SetCompression(false)
	doc.setLetterhead(profile.MastheadLines())

	parties := signatureParties(profile, &inspection.Signatory{Name: "Dr. X", NIP: "NIP-1"}, fixedNow)
	sections := BuildSections(sampleRecords()[:1], inspection.ReportOptions{})
	noPhotos := func(inspection.Photo) ([]byte, bool) { return nil, false }
	for _, s := range sections {
		doc.section(s, profile.Hospital, parties, noPhotos)
	}
	data, err := doc.bytes()
	require.NoError(t, err)

	assert.Contains(t, string(data), "(Dr. X)")
	assert.Contains(t, string(data), "(NIP. NIP-1)")
	assert.Contains(t, string(data), "(BULAN TIDAK TERSEDIA)")
	assert.Contains(t, string(data), "(Gambar tidak dapat dimuat)")
	assert.NotContains(t, string(data), profile.FirstSignatory.Name)
	assert.Contains(t, string(data), "(DINAS KESEHATAN)")
	assert.Contains(t, string(data), "(PEMERINTAH PROVINSI SUMATERA BARAT)")
}

func TestPDFDocument_LetterheadOnlyWithoutLogo(t *testing.T) {
	logo, size, err := normalizeLogo(testPNG(t, 60, 50))
	require.NoError(t, err)

	doc := newPDFDocument(fixedNow)
	doc.pdf.SetCompression(false)
	doc.setLetterhead(institution.Default().MastheadLines())
	doc.setLogo(logo, size)
	for _, s := range BuildSections(nil, inspection.ReportOptions{}) {
		doc.section(s, "RS", signatureParties(institution.Default(), nil, fixedNow), func(inspection.Photo) ([]byte, bool) { return nil, false })
	}
	data, err := doc.bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "(DINAS KESEHATAN)")
}

func TestPDFDocument_OversizedRowContinuesOnNextPages(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("Kabel panel listrik terkelupas dan terpapar air hujan. ", 150))
	recs := []inspection.Record{{
		Type: "Kelistrikan",
		Date: inspection.NewDate(2025, 3, 2),
		Findings: []inspection.Finding{
			{Location: "Ruang Panel", Finding: long, Photos: []inspection.Photo{{SignedURL: "http://photos.test/ok-1.png"}}},
			{Location: "Lorong", Finding: "Stop kontak longgar"},
		},
	}}
	photo, err := normalizePhoto(testPNG(t, 40, 30), pdfPhotoPixelW, pdfPhotoPixelH)
	require.NoError(t, err)
	load := func(inspection.Photo) ([]byte, bool) { return photo, true }

	doc := newPDFDocument(fixedNow)
	top, bottom := pdfMargin, doc.pageH-pdfMargin
	maxH := bottom - top - pdfHeaderH

	sections := BuildSections(recs, inspection.ReportOptions{})
	require.Len(t, sections, 1)
	rows := doc.prepareRows(sections[0].Rows, load)
	require.Greater(t, rows[0].height, maxH)

	parts := doc.splitRow(rows[0], maxH)
	require.Greater(t, len(parts), 1)

	var text [][]byte
	heights := make([]float64, len(parts))
	for i, p := range parts {
		assert.LessOrEqual(t, p.height, maxH)
		text = append(text, p.lines[3]...)
		heights[i] = p.height
		if i > 0 {
			assert.Empty(t, p.images)
			assert.Empty(t, p.lines[0])
		}
	}
	assert.Len(t, parts[0].images, 1)
	assert.Equal(t, rows[0].lines[3], text)

	// Every part lands inside a page's content box.
	plan := planTable(top, top, bottom, pdfHeaderH, heights)
	for _, it := range plan.Items {
		h := pdfHeaderH
		if !it.Header {
			h = heights[it.Row]
		}
		assert.GreaterOrEqual(t, it.Y, top)
		assert.LessOrEqual(t, it.Y+h, bottom)
	}

	assert.Equal(t, []pdfRow{rows[1]}, doc.splitRow(rows[1], maxH))

	for _, s := range sections {
		doc.section(s, "RS", signatureParties(institution.Default(), nil, fixedNow), load)
	}
	assert.Greater(t, doc.pdf.PageCount(), len(parts)-1)
	_, err = doc.bytes()
	require.NoError(t, err)
}

func TestPDFDocument_LongTableSpillsOntoNewPages(t *testing.T) {
	var findings []inspection.Finding
	for i := 0; i < 40; i++ {
		findings = append(findings, inspection.Finding{Location: "Ruang", Finding: "Temuan"})
	}
	recs := []inspection.Record{{Type: "Umum", Date: inspection.NewDate(2025, 3, 1), Findings: findings}}

	doc := newPDFDocument(fixedNow)
	for _, s := range BuildSections(recs, inspection.ReportOptions{}) {
		doc.section(s, "RS", signatureParties(institution.Default(), nil, fixedNow), func(inspection.Photo) ([]byte, bool) { return nil, false })
	}
	assert.Greater(t, doc.pdf.PageCount(), 1)
	_, err := doc.bytes()
	require.NoError(t, err)
}

func TestExportWorkbook(t *testing.T) {
	logoPath := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(logoPath, testPNG(t, 60, 50), 0o600))

	e, _, obs := newTestExporter(t, WithLogo(logoPath))
	recs := sampleRecords()
	art, err := e.ExportWorkbook(context.Background(), recs, inspection.ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Laporan_Inspeksi_K3RS_2025-03-20.xlsx", art.Filename)
	assert.Equal(t, "r1", recs[0].ID, "input must not be reordered")

	f, err := excelize.OpenReader(bytes.NewReader(art.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		"Ringkasan Inspeksi", "Kelistrikan_2025-03-02", "Kebakaran_2025-03-10", "Kebakaran_2025-03-10~2",
	}, f.GetSheetList())

	get := func(sheet, cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "RINGKASAN LAPORAN INSPEKSI K3RS", get("Ringkasan Inspeksi", "A1"))
	assert.Equal(t, "JENIS INSPEKSI", get("Ringkasan Inspeksi", "B3"))
	assert.Equal(t, "Kelistrikan", get("Ringkasan Inspeksi", "B4"))
	assert.Equal(t, "3", get("Ringkasan Inspeksi", "E5"))
	assert.Equal(t, "Ada Temuan", get("Ringkasan Inspeksi", "F5"))

	sheet := "Kebakaran_2025-03-10"
	assert.Equal(t, "LAPORAN TEMUAN K3RS", get(sheet, "A9"))
	assert.Equal(t, "KEBAKARAN - 10 MARET 2025", get(sheet, "A10"))
	assert.Equal(t, "DOKUMENTASI", get(sheet, "D13"))
	assert.Equal(t, "1", get(sheet, "A14"))
	assert.Equal(t, "Gudang Farmasi", get(sheet, "B14"))
	assert.Equal(t, "• Kebakaran tidak tertangani\n• Cedera", get(sheet, "E14"))
	assert.Equal(t, "2 dokumentasi", get(sheet, "D14"))
	assert.Equal(t, "Tidak ada dokumentasi", get(sheet, "D15"))
	assert.Equal(t, "-", get(sheet, "E15"))

	pics, err := f.GetPictures(sheet, "D14")
	require.NoError(t, err)
	assert.Len(t, pics, 2)

	logo, err := f.GetPictures(sheet, "A1")
	require.NoError(t, err)
	assert.Len(t, logo, 1)

	h, err := f.GetRowHeight(sheet, 14)
	require.NoError(t, err)
	assert.InDelta(t, 240.0, h, 0.5)

	// Every fetch of the one photo failed.
	assert.Equal(t, "Gambar tidak dapat dimuat", get("Kelistrikan_2025-03-02", "D14"))

	// Signature block sits two rows under the last finding.
	assert.Equal(t, "Lubuk Alung, 20 Maret 2025", get(sheet, "E17"))
	assert.Equal(t, institution.Default().FirstSignatory.Name, get(sheet, "B21"))

	assert.Equal(t, 2, obs.photosOK)
	assert.Equal(t, 2, obs.photosKO)
}

func TestExportWorkbook_MissingLogoUsesPlaceholder(t *testing.T) {
	e, _, _ := newTestExporter(t, WithLogo(filepath.Join(t.TempDir(), "absent.png")))
	art, err := e.ExportWorkbook(context.Background(), sampleRecords()[:1], inspection.ReportOptions{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(art.Data))
	require.NoError(t, err)
	defer f.Close()

	pics, err := f.GetPictures("Kebakaran_2025-03-10", "A1")
	require.NoError(t, err)
	assert.Len(t, pics, 1)
}

func TestExportWorkbook_NilFetcherStillCompletes(t *testing.T) {
	e := NewExporter(institution.Default(), nil, WithClock(fixedClock))
	art, err := e.ExportWorkbook(context.Background(), sampleRecords(), inspection.ReportOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, art.Data)
}

func TestExportWorkbookSimple(t *testing.T) {
	e, fetcher, _ := newTestExporter(t)
	art, err := e.ExportWorkbookSimple(context.Background(), sampleRecords(), inspection.ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Laporan_K3RS_Simple_2025-03-20.xlsx", art.Filename)
	assert.Empty(t, fetcher.Calls())

	f, err := excelize.OpenReader(bytes.NewReader(art.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Laporan K3RS"}, f.GetSheetList())
	rows, err := f.GetRows("Laporan K3RS")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, flatHeader, rows[0])
	assert.Equal(t, []string{"4", "Kebakaran", "10 Maret 2025", "Dapur", "Tabung gas bocor", "-", "-", "0"}, rows[4])
}

func TestExportCSV(t *testing.T) {
	e, _, _ := newTestExporter(t)
	art, err := e.ExportCSV(context.Background(), sampleRecords(), inspection.ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Laporan_K3RS_Simple_2025-03-20.csv", art.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", art.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(art.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Gudang Farmasi", rows[1][3])
	assert.Equal(t, "3", rows[1][7])
}

func TestExport_LogsFailedPhotos(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	e, _, _ := newTestExporter(t, WithLogger(zap.New(core)))

	_, err := e.ExportPDF(context.Background(), sampleRecords(), inspection.ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("photo unavailable").Len())
}

type failingObserver struct {
	recordingObserver
	lastErr error
}

func (o *failingObserver) ExportFinished(f Format, d time.Duration, err error) {
	o.lastErr = err
}

func TestRun_RendererFailureIsReturned(t *testing.T) {
	obs := &failingObserver{}
	e := NewExporter(institution.Default(), nil, WithObserver(obs), WithClock(fixedClock))
	boom := errors.New("boom")

	art, err := e.run(FormatPDF, "x", ".pdf", contentTypePDF, func(time.Time) ([]byte, error) { return nil, boom })
	assert.Nil(t, art)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, obs.lastErr, boom)
}
