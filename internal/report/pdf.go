package report

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"k3rs/backend/internal/inspection"
)

const (
	pdfFont   = "Helvetica"
	pdfMargin = 28.0

	pdfLogoW = 501.4
	pdfLogoH = 71.2

	pdfHeaderH   = 22.0
	pdfCellPad   = 4.0
	pdfBodySize  = 8.0
	pdfBodyLineH = 10.0
	pdfPhotoGap  = 4.0

	// Photos are normalised to a 3:4 portrait before embedding.
	pdfPhotoPixelW = 240
	pdfPhotoPixelH = 320

	pdfSignatureGap   = 24.0
	pdfSignatureLineH = 14.0
	pdfSignatureSpace = 40.0
)

type pdfColumn struct {
	caption string
	share   float64 // percent of the content width
	align   string
}

var pdfColumns = []pdfColumn{
	{"NO.", 5, "C"},
	{"TGL INSPEKSI", 10, "C"},
	{"LOKASI", 12, "L"},
	{"TEMUAN", 17, "L"},
	{"DOKUMENTASI", 20, "C"},
	{"BAHAYA/RISIKO", 13, "L"},
	{"REKOMENDASI", 13, "L"},
	{"KETERANGAN", 10, "L"},
}

const pdfPhotoColumn = 4

// photoLoader returns normalised image bytes for p, or false when the photo
// could not be used.
type photoLoader func(p inspection.Photo) ([]byte, bool)

type pdfDocument struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	pageW  float64
	pageH  float64
	widths []float64

	logo         string
	logoW, logoH float64
	letterhead   []string

	seq int
}

type pdfRow struct {
	SectionRow
	images [][]byte
	note   string
	lines  [][][]byte
	height float64
}

func newPDFDocument(now time.Time) *pdfDocument {
	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(0)
	pdf.SetLineWidth(0.5)
	pdf.SetCreationDate(now)
	pdf.SetTitle(reportTitle, true)
	pdf.SetCreator("K3RS", true)

	w, h := pdf.GetPageSize()
	content := w - 2*pdfMargin
	widths := make([]float64, len(pdfColumns))
	for i, c := range pdfColumns {
		widths[i] = content * c.share / 100
	}
	return &pdfDocument{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		pageW:  w,
		pageH:  h,
		widths: widths,
	}
}

// setLogo registers a PNG logo, fitted inside the masthead box.
func (d *pdfDocument) setLogo(data []byte, size image.Point) {
	if size.X <= 0 || size.Y <= 0 {
		return
	}
	d.pdf.RegisterImageOptionsReader("logo", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
	scale := math.Min(pdfLogoW/float64(size.X), pdfLogoH/float64(size.Y))
	d.logo = "logo"
	d.logoW = float64(size.X) * scale
	d.logoH = float64(size.Y) * scale
}

// setLetterhead sets the text drawn in the logo box when no logo is
// registered.
func (d *pdfDocument) setLetterhead(lines []string) {
	d.letterhead = lines
}

// section renders s starting on a new page.
func (d *pdfDocument) section(s Section, hospital string, parties [2]SignatureParty, load photoLoader) {
	top, bottom := pdfMargin, d.pageH-pdfMargin
	var rows []pdfRow
	for _, r := range d.prepareRows(s.Rows, load) {
		rows = append(rows, d.splitRow(r, bottom-top-pdfHeaderH)...)
	}

	d.pdf.AddPage()
	y := d.masthead(s, hospital)

	heights := make([]float64, len(rows))
	for i := range rows {
		heights[i] = rows[i].height
	}
	plan := planTable(y, top, bottom, pdfHeaderH, heights)

	page := 0
	for _, it := range plan.Items {
		for page < it.Page {
			d.pdf.AddPage()
			page++
		}
		if it.Header {
			d.tableHeader(it.Y)
			continue
		}
		d.tableRow(rows[it.Row], it.Y)
	}

	sigY, newPage := placeBlock(plan.EndY+pdfSignatureGap, signatureHeight(), top, bottom)
	if newPage {
		d.pdf.AddPage()
	}
	d.signature(parties, sigY)
}

func (d *pdfDocument) prepareRows(in []SectionRow, load photoLoader) []pdfRow {
	rows := make([]pdfRow, len(in))
	d.pdf.SetFont(pdfFont, "", pdfBodySize)
	for i, sr := range in {
		r := pdfRow{SectionRow: sr}
		for _, slot := range sr.Photos.Slots() {
			if img, ok := load(slot.Photo); ok {
				r.images = append(r.images, img)
			}
		}
		switch {
		case sr.Photos.Placeholder:
			r.note = Placeholder
		case len(r.images) == 0:
			r.note = photosUnavailable
		}

		texts := []string{
			strconv.Itoa(sr.Number), sr.Date, sr.Location, sr.Finding,
			r.note, sr.HazardRisk, sr.Recommendation, sr.Notes,
		}
		r.lines = make([][][]byte, len(texts))
		tallest := 0.0
		for c, text := range texts {
			if c == pdfPhotoColumn && len(r.images) > 0 {
				tallest = math.Max(tallest, d.photoBlockHeight(len(r.images)))
				continue
			}
			r.lines[c] = d.pdf.SplitLines([]byte(d.tr(text)), d.widths[c]-2*pdfCellPad)
			tallest = math.Max(tallest, float64(len(r.lines[c]))*pdfBodyLineH)
		}
		r.height = tallest + 2*pdfCellPad
		rows[i] = r
	}
	return rows
}

// splitRow breaks a row taller than maxH into consecutive rows that each fit
// on a fresh page. Every column's text continues where the previous part
// stopped; photos stay in the first part.
func (d *pdfDocument) splitRow(r pdfRow, maxH float64) []pdfRow {
	if r.height <= maxH {
		return []pdfRow{r}
	}
	perPart := max(int((maxH-2*pdfCellPad)/pdfBodyLineH), 1)
	tallest := 0
	for _, l := range r.lines {
		tallest = max(tallest, len(l))
	}

	var parts []pdfRow
	for start := 0; start < tallest; start += perPart {
		p := pdfRow{SectionRow: r.SectionRow, lines: make([][][]byte, len(r.lines))}
		if start == 0 {
			p.images, p.note = r.images, r.note
		}
		h := 0.0
		for c, l := range r.lines {
			if start < len(l) {
				p.lines[c] = l[start:min(start+perPart, len(l))]
			}
			h = math.Max(h, float64(len(p.lines[c]))*pdfBodyLineH)
		}
		if len(p.images) > 0 {
			h = math.Max(h, d.photoBlockHeight(len(p.images)))
		}
		p.height = h + 2*pdfCellPad
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return []pdfRow{r}
	}
	return parts
}

func (d *pdfDocument) photoBox() (float64, float64) {
	w := (d.widths[pdfPhotoColumn] - 2*pdfCellPad - pdfPhotoGap) / photosPerRow
	return w, w * 4 / 3
}

func (d *pdfDocument) photoBlockHeight(n int) float64 {
	_, h := d.photoBox()
	rows := (n + photosPerRow - 1) / photosPerRow
	return float64(rows)*h + float64(rows-1)*pdfPhotoGap
}

func (d *pdfDocument) masthead(s Section, hospital string) float64 {
	y := pdfMargin
	content := d.pageW - 2*pdfMargin
	switch {
	case d.logo != "":
		x := (d.pageW - d.logoW) / 2
		d.pdf.ImageOptions(d.logo, x, y+(pdfLogoH-d.logoH)/2, d.logoW, d.logoH, false,
			fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	case len(d.letterhead) > 0:
		lineH := pdfLogoH / float64(len(d.letterhead))
		for i, line := range d.letterhead {
			if i == 2 {
				d.pdf.SetFont(pdfFont, "B", 11)
			} else {
				d.pdf.SetFont(pdfFont, "", 9)
			}
			d.pdf.SetXY(pdfMargin, y+float64(i)*lineH)
			d.pdf.CellFormat(content, lineH, d.tr(line), "", 0, "CM", false, 0, "")
		}
	}
	y += pdfLogoH + 8

	titles := []struct {
		text string
		size float64
	}{
		{reportTitle, 14},
		{s.Subtitle, 12},
		{upper(hospital), 12},
		{s.Period, 11},
	}
	for _, t := range titles {
		d.pdf.SetFont(pdfFont, "B", t.size)
		d.pdf.SetXY(pdfMargin, y)
		d.pdf.CellFormat(content, t.size+4, d.tr(t.text), "", 0, "C", false, 0, "")
		y += t.size + 4
	}
	return y + 10
}

func (d *pdfDocument) tableHeader(y float64) {
	d.pdf.SetFont(pdfFont, "B", pdfBodySize)
	d.pdf.SetFillColor(0xA9, 0xA9, 0xA9)
	x := pdfMargin
	for i, c := range pdfColumns {
		d.pdf.SetXY(x, y)
		d.pdf.CellFormat(d.widths[i], pdfHeaderH, d.tr(c.caption), "1", 0, "CM", true, 0, "")
		x += d.widths[i]
	}
}

func (d *pdfDocument) tableRow(r pdfRow, y float64) {
	d.pdf.SetFont(pdfFont, "", pdfBodySize)
	x := pdfMargin
	for c, col := range pdfColumns {
		w := d.widths[c]
		d.pdf.Rect(x, y, w, r.height, "D")

		if c == pdfPhotoColumn && len(r.images) > 0 {
			d.photos(r.images, x+pdfCellPad, y+pdfCellPad)
		} else {
			for i, line := range r.lines[c] {
				d.pdf.SetXY(x+pdfCellPad, y+pdfCellPad+float64(i)*pdfBodyLineH)
				d.pdf.CellFormat(w-2*pdfCellPad, pdfBodyLineH, string(line), "", 0, col.align, false, 0, "")
			}
		}
		x += w
	}
}

func (d *pdfDocument) photos(images [][]byte, x, y float64) {
	w, h := d.photoBox()
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	for i, img := range images {
		name := "photo-" + strconv.Itoa(d.seq)
		d.seq++
		d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
		col, row := i%photosPerRow, i/photosPerRow
		d.pdf.ImageOptions(name,
			x+float64(col)*(w+pdfPhotoGap),
			y+float64(row)*(h+pdfPhotoGap),
			w, h, false, opts, 0, "")
	}
}

func signatureHeight() float64 {
	return 5*pdfSignatureLineH + pdfSignatureSpace
}

// signature draws both parties side by side with their names on one line.
func (d *pdfDocument) signature(parties [2]SignatureParty, y float64) {
	colW := (d.pageW - 2*pdfMargin) * 0.45
	xs := [2]float64{pdfMargin, d.pageW - pdfMargin - colW}

	for i, p := range parties {
		line := func(cy float64, style string, size float64, text string) {
			d.pdf.SetFont(pdfFont, style, size)
			d.pdf.SetXY(xs[i], cy)
			d.pdf.CellFormat(colW, pdfSignatureLineH, d.tr(text), "", 0, "C", false, 0, "")
		}
		cy := y
		if p.Dateline != "" {
			line(cy, "", 10, p.Dateline)
		}
		cy += pdfSignatureLineH
		line(cy, "", 10, p.Heading)
		cy += pdfSignatureLineH
		line(cy, "", 10, p.Role)
		cy += pdfSignatureLineH + pdfSignatureSpace
		line(cy, "BU", 10, p.Name)
		cy += pdfSignatureLineH
		line(cy, "", 9, p.NIPLine)
	}
}

func (d *pdfDocument) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
