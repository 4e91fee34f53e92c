package report

import (
	"math"

	"k3rs/backend/internal/inspection"
)

const (
	// PDFPhotoCap is the most photos one paginated-report row shows.
	PDFPhotoCap = 4
	// WorkbookPhotoCap is the most photos one detailed-workbook row embeds.
	WorkbookPhotoCap = 6

	photosPerRow = 2
)

// Fractional cell offsets used to anchor embedded workbook images.
const (
	anchorLeftMargin = 0.02
	anchorTopMargin  = 0.01
	anchorColStep    = 0.48
	anchorRowStep    = 0.85
	anchorColLimit   = 0.94
)

// Anchor is a fractional (column, row) position on a sheet, zero-based.
type Anchor struct {
	Col float64
	Row float64
}

// PhotoSlot is one planned photo position.
type PhotoSlot struct {
	Index  int // position in the capped input
	Row    int // grid row
	Col    int // grid column, 0 or 1
	Photo  inspection.Photo
	Anchor Anchor
}

// PhotoGrid is the planned arrangement of a finding's photos.
type PhotoGrid struct {
	// Placeholder is set when there were no photos at all; renderers draw
	// the "no documentation" marker instead of a grid.
	Placeholder bool
	Rows        [][]PhotoSlot
}

// Count is the number of planned slots.
func (g PhotoGrid) Count() int {
	n := 0
	for _, row := range g.Rows {
		n += len(row)
	}
	return n
}

// Slots flattens the grid in reading order.
func (g PhotoGrid) Slots() []PhotoSlot {
	out := make([]PhotoSlot, 0, g.Count())
	for _, row := range g.Rows {
		out = append(out, row...)
	}
	return out
}

// PlanPhotos takes at most limit photos and arranges them two per row.
func PlanPhotos(photos []inspection.Photo, limit int) PhotoGrid {
	if len(photos) == 0 {
		return PhotoGrid{Placeholder: true}
	}
	if limit > 0 && len(photos) > limit {
		photos = photos[:limit]
	}

	var grid PhotoGrid
	for i, p := range photos {
		r, c := i/photosPerRow, i%photosPerRow
		if c == 0 {
			grid.Rows = append(grid.Rows, make([]PhotoSlot, 0, photosPerRow))
		}
		grid.Rows[r] = append(grid.Rows[r], PhotoSlot{Index: i, Row: r, Col: c, Photo: p})
	}
	return grid
}

// PlanSheetPhotos plans a workbook cell's photos and anchors each slot inside
// the cell at zero-based column colIndex and row baseRow.
func PlanSheetPhotos(photos []inspection.Photo, colIndex, baseRow int) PhotoGrid {
	grid := PlanPhotos(photos, WorkbookPhotoCap)
	for r := range grid.Rows {
		for c := range grid.Rows[r] {
			grid.Rows[r][c].Anchor = sheetAnchor(colIndex, baseRow, r, c)
		}
	}
	return grid
}

func sheetAnchor(colIndex, baseRow, gridRow, gridCol int) Anchor {
	col := float64(colIndex) + anchorLeftMargin + float64(gridCol)*anchorColStep
	col = math.Min(col, float64(colIndex)+anchorColLimit)
	row := float64(baseRow) + anchorTopMargin + float64(gridRow)*anchorRowStep
	return Anchor{Col: col, Row: row}
}
