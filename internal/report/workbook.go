package report

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"k3rs/backend/internal/institution"
)

const (
	summarySheetName = "Ringkasan Inspeksi"
	simpleSheetName  = "Laporan K3RS"
	defaultSheetName = "Sheet1"
	workbookAuthor   = "K3RS System"

	// Embedded photo size in pixels.
	sheetPhotoPixelW = 110
	sheetPhotoPixelH = 80

	// Pixel extents used to turn fractional anchors into cell offsets.
	photoColumnPixels = 40*7 + 5
	photoBandPixels   = rowPhotoBand * 96 / 72

	a4PaperSize = 9
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

var headerFill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"A9A9A9"}}

// styleSet registers styles on a file, keeping the first error.
type styleSet struct {
	f   *excelize.File
	err error
}

func (s *styleSet) add(st *excelize.Style) int {
	if s.err != nil {
		return 0
	}
	id, err := s.f.NewStyle(st)
	if err != nil {
		s.err = fmt.Errorf("register style: %w", err)
	}
	return id
}

type workbookStyles struct {
	title        int
	header       int
	cell         int
	cellCentered int
	photoCount   int
	photoNote    int
	masthead     int
	mastheadBold int
	logoBox      int
	rule         int
	heading      int
	subheading   int
	hospital     int
	plain        int
	signerName   int
	signerNIP    int
}

func newWorkbookStyles(f *excelize.File) (workbookStyles, error) {
	s := &styleSet{f: f}
	wrapTop := &excelize.Alignment{Vertical: "top", WrapText: true}
	centered := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}

	st := workbookStyles{
		title:        s.add(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}, Alignment: centered}),
		header:       s.add(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 11}, Fill: headerFill, Border: thinBorder, Alignment: centered}),
		cell:         s.add(&excelize.Style{Border: thinBorder, Alignment: wrapTop}),
		cellCentered: s.add(&excelize.Style{Border: thinBorder, Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"}}),
		photoCount: s.add(&excelize.Style{
			Font:      &excelize.Font{Italic: true, Size: 9, Color: "666666"},
			Border:    thinBorder,
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "bottom"},
		}),
		photoNote: s.add(&excelize.Style{
			Font:      &excelize.Font{Italic: true, Size: 9, Color: "999999"},
			Border:    thinBorder,
			Alignment: centered,
		}),
		masthead:     s.add(&excelize.Style{Font: &excelize.Font{Size: 11}, Alignment: centered}),
		mastheadBold: s.add(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: centered}),
		logoBox:      s.add(&excelize.Style{Alignment: centered}),
		rule: s.add(&excelize.Style{Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 5},
		}}),
		heading:    s.add(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: centered}),
		subheading: s.add(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}, Alignment: centered}),
		hospital:   s.add(&excelize.Style{Font: &excelize.Font{Size: 11}, Alignment: centered}),
		plain:      s.add(&excelize.Style{Alignment: &excelize.Alignment{Horizontal: "center"}}),
		signerName: s.add(&excelize.Style{Font: &excelize.Font{Bold: true, Underline: "single"}, Alignment: &excelize.Alignment{Horizontal: "center"}}),
		signerNIP:  s.add(&excelize.Style{Font: &excelize.Font{Size: 9}, Alignment: &excelize.Alignment{Horizontal: "center"}}),
	}
	return st, s.err
}

// sheetWriter accumulates the first error across a run of sheet calls.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) do(err error) {
	if w.err == nil && err != nil {
		w.err = fmt.Errorf("sheet %q: %w", w.sheet, err)
	}
}

func (w *sheetWriter) value(cell string, v any) {
	w.do(w.f.SetCellValue(w.sheet, cell, v))
}

func (w *sheetWriter) style(from, to string, id int) {
	w.do(w.f.SetCellStyle(w.sheet, from, to, id))
}

func (w *sheetWriter) merge(from, to string) {
	w.do(w.f.MergeCell(w.sheet, from, to))
}

func (w *sheetWriter) height(row int, h float64) {
	w.do(w.f.SetRowHeight(w.sheet, row, h))
}

func (w *sheetWriter) widths(cols []float64) {
	for i, width := range cols {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.do(w.f.SetColWidth(w.sheet, col, col, width))
	}
}

func (w *sheetWriter) landscapeA4() {
	size := a4PaperSize
	orientation := "landscape"
	w.do(w.f.SetPageLayout(w.sheet, &excelize.PageLayoutOptions{Size: &size, Orientation: &orientation}))
	margin, edge := 0.3, 0.5
	w.do(w.f.SetPageMargins(w.sheet, &excelize.PageLayoutMarginsOptions{
		Left: &edge, Right: &edge, Top: &margin, Bottom: &margin,
	}))
}

func cell(col string, row int) string {
	return col + strconv.Itoa(row)
}

// detailWorkbook renders the summary sheet and one sheet per record.
type detailWorkbook struct {
	f       *excelize.File
	styles  workbookStyles
	profile institution.Profile
	parties [2]SignatureParty
	logo    []byte
	load    photoLoader
}

func newDetailWorkbook(profile institution.Profile, parties [2]SignatureParty, logo []byte, now time.Time, load photoLoader) (*detailWorkbook, error) {
	f := excelize.NewFile()
	styles, err := newWorkbookStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Creator:        workbookAuthor,
		LastModifiedBy: workbookAuthor,
		Title:          summaryTitle,
		Created:        now.Format(time.RFC3339),
		Modified:       now.Format(time.RFC3339),
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("set workbook properties: %w", err)
	}
	return &detailWorkbook{f: f, styles: styles, profile: profile, parties: parties, logo: logo, load: load}, nil
}

func (b *detailWorkbook) close() error {
	return b.f.Close()
}

func (b *detailWorkbook) summary(rows []SummaryRow) error {
	if err := b.f.SetSheetName(defaultSheetName, summarySheetName); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	w := &sheetWriter{f: b.f, sheet: summarySheetName}
	w.widths([]float64{5, 25, 20, 15, 15, 20})

	w.merge("A1", "F1")
	w.value("A1", summaryTitle)
	w.style("A1", "F1", b.styles.title)
	w.height(1, 30)

	for i, caption := range []string{"NO", "JENIS INSPEKSI", "TANGGAL", "JUMLAH TEMUAN", "JUMLAH FOTO", "STATUS"} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.value(cell(col, 3), caption)
	}
	w.style("A3", "F3", b.styles.header)
	w.height(3, 25)

	for i, r := range rows {
		n := 4 + i
		w.value(cell("A", n), r.Number)
		w.value(cell("B", n), r.Type)
		w.value(cell("C", n), r.Date)
		w.value(cell("D", n), r.Findings)
		w.value(cell("E", n), r.Photos)
		w.value(cell("F", n), r.Status)
		w.style(cell("A", n), cell("F", n), b.styles.cell)
		w.style(cell("A", n), cell("A", n), b.styles.cellCentered)
		w.style(cell("D", n), cell("E", n), b.styles.cellCentered)
	}
	return w.err
}

func (b *detailWorkbook) detail(sheet DetailSheet) error {
	if _, err := b.f.NewSheet(sheet.Name); err != nil {
		return fmt.Errorf("add sheet %q: %w", sheet.Name, err)
	}
	w := &sheetWriter{f: b.f, sheet: sheet.Name}
	w.landscapeA4()
	w.widths(append(detailColumnWidths[:], 15, 15, 15, 15))

	b.masthead(w)

	w.merge("A9", "F9")
	w.value("A9", reportTitle)
	w.style("A9", "F9", b.styles.heading)
	w.merge("A10", "F10")
	w.value("A10", sheet.Subtitle)
	w.style("A10", "F10", b.styles.subheading)
	w.merge("A11", "F11")
	w.value("A11", upper(b.profile.Hospital))
	w.style("A11", "F11", b.styles.hospital)

	for i, caption := range []string{"NO.", "LOKASI", "TEMUAN", "DOKUMENTASI", "BAHAYA/RISIKO", "REKOMENDASI"} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.value(cell(col, detailHeaderRow), caption)
	}
	w.style(cell("A", detailHeaderRow), cell("F", detailHeaderRow), b.styles.header)
	w.height(detailHeaderRow, 25)

	for _, r := range sheet.Rows {
		n := r.SheetRow
		w.height(n, r.Height)
		w.value(cell("A", n), r.Number)
		w.value(cell("B", n), r.Location)
		w.value(cell("C", n), r.Finding)
		w.value(cell("E", n), r.HazardRisk)
		w.value(cell("F", n), r.Recommendation)
		w.style(cell("A", n), cell("F", n), b.styles.cell)
		w.style(cell("A", n), cell("A", n), b.styles.cellCentered)
		if w.err != nil {
			return w.err
		}
		if err := b.photos(w, r); err != nil {
			return err
		}
	}

	last := detailHeaderRow
	if len(sheet.Rows) > 0 {
		last = sheet.Rows[len(sheet.Rows)-1].SheetRow
	}
	b.signatures(w, last+2)
	return w.err
}

func (b *detailWorkbook) masthead(w *sheetWriter) {
	w.merge("A1", "A6")
	w.style("A1", "A6", b.styles.logoBox)
	if len(b.logo) > 0 {
		w.do(b.f.AddPictureFromBytes(w.sheet, "A1", &excelize.Picture{
			Extension: ".png",
			File:      b.logo,
			Format: &excelize.GraphicOptions{
				AutoFit:     true,
				OffsetX:     2,
				OffsetY:     2,
				Positioning: "oneCell",
			},
		}))
	} else {
		w.value("A1", b.profile.LogoLabel)
	}

	for i, line := range b.profile.MastheadLines() {
		row := i + 1
		w.merge(cell("B", row), cell("J", row))
		w.value(cell("B", row), line)
		style := b.styles.masthead
		if i == 2 {
			style = b.styles.mastheadBold
		}
		w.style(cell("B", row), cell("J", row), style)
		w.height(row, 20)
	}

	w.merge("A7", "J7")
	w.style("A7", "J7", b.styles.rule)
}

// photos embeds a row's images one at a time in plan order. Failed fetches
// are skipped; the cell text reflects what was embedded.
func (b *detailWorkbook) photos(w *sheetWriter, r DetailRow) error {
	target := cell("D", r.SheetRow)
	if r.Photos.Placeholder {
		w.value(target, photosNone)
		w.style(target, target, b.styles.photoNote)
		return w.err
	}

	embedded := 0
	for _, slot := range r.Photos.Slots() {
		img, ok := b.load(slot.Photo)
		if !ok {
			continue
		}
		offsetX := int(math.Round((slot.Anchor.Col - float64(photoColumnIndex)) * photoColumnPixels))
		offsetY := int(math.Round((slot.Anchor.Row - float64(r.SheetRow-1)) * photoBandPixels))
		if err := b.f.AddPictureFromBytes(w.sheet, target, &excelize.Picture{
			Extension: ".jpg",
			File:      img,
			Format: &excelize.GraphicOptions{
				OffsetX:         offsetX,
				OffsetY:         offsetY,
				LockAspectRatio: true,
				Positioning:     "oneCell",
			},
		}); err != nil {
			return fmt.Errorf("sheet %q: embed photo %d: %w", w.sheet, slot.Index+1, err)
		}
		embedded++
	}

	if embedded == 0 {
		w.value(target, photosUnavailable)
		w.style(target, target, b.styles.photoNote)
	} else {
		w.value(target, fmt.Sprintf("%d dokumentasi", embedded))
		w.style(target, target, b.styles.photoCount)
	}
	return w.err
}

func (b *detailWorkbook) signatures(w *sheetWriter, row int) {
	b.signatureColumn(w, "B", row, b.parties[0])
	b.signatureColumn(w, "E", row, b.parties[1])
}

// signatureColumn writes one party. Names and NIP lines sit on the same rows
// for both columns; the dateline, when present, pushes heading and role down.
func (b *detailWorkbook) signatureColumn(w *sheetWriter, col string, row int, p SignatureParty) {
	at := func(offset int, text string, style int) {
		c := cell(col, row+offset)
		w.value(c, text)
		w.style(c, c, style)
	}
	next := 0
	if p.Dateline != "" {
		at(next, p.Dateline, b.styles.plain)
		next++
	}
	at(next, p.Heading, b.styles.plain)
	at(next+1, p.Role, b.styles.plain)
	at(4, p.Name, b.styles.signerName)
	at(5, p.NIPLine, b.styles.signerNIP)
}

func (b *detailWorkbook) bytes() ([]byte, error) {
	b.f.SetActiveSheet(0)
	buf, err := b.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
