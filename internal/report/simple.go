package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

var simpleColumnWidths = []float64{5, 20, 18, 20, 35, 30, 30, 12}

// renderSimpleWorkbook writes the flat single-sheet workbook.
func renderSimpleWorkbook(rows []FlatRow, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheetName, simpleSheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Creator:        workbookAuthor,
		LastModifiedBy: workbookAuthor,
		Title:          reportTitle,
		Created:        now.Format(time.RFC3339),
		Modified:       now.Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("set workbook properties: %w", err)
	}

	styles, err := newWorkbookStyles(f)
	if err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f, sheet: simpleSheetName}
	w.widths(simpleColumnWidths)

	header := make([]any, len(flatHeader))
	for i, h := range flatHeader {
		header[i] = h
	}
	w.do(f.SetSheetRow(simpleSheetName, "A1", &header))
	w.style("A1", "H1", styles.header)
	w.height(1, 25)

	for i, r := range rows {
		n := i + 2
		values := []any{r.Number, r.Type, r.Date, r.Location, r.Finding, r.HazardRisk, r.Recommendation, r.Photos}
		w.do(f.SetSheetRow(simpleSheetName, cell("A", n), &values))
		w.style(cell("A", n), cell("H", n), styles.cell)
		w.style(cell("A", n), cell("A", n), styles.cellCentered)
		w.style(cell("H", n), cell("H", n), styles.cellCentered)
		w.height(n, 60)
	}
	if w.err != nil {
		return nil, w.err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// renderCSV writes the same flat rows as the simple workbook.
func renderCSV(rows []FlatRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(flatHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Number), r.Type, r.Date, r.Location, r.Finding,
			r.HazardRisk, r.Recommendation, strconv.Itoa(r.Photos),
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", r.Number, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
