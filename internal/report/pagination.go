package report

// tableItem is one drawable piece of a paginated table: either a header row
// or the body row at index Row.
type tableItem struct {
	Header bool
	Row    int
	Page   int // relative to the page the table starts on
	Y      float64
}

// tablePlan is where every header and row of a table lands.
type tablePlan struct {
	Items   []tableItem
	EndPage int
	EndY    float64
}

// planTable places a header and body rows of the given heights starting at
// startY. A row that does not fit above bottom moves whole to a fresh page,
// where the header is repeated first. The first header is kept with the first
// row. A row taller than a fresh page is placed anyway and overflows, so
// callers split such rows first.
func planTable(startY, top, bottom, headerH float64, heights []float64) tablePlan {
	var plan tablePlan
	page, y := 0, startY

	first := headerH
	if len(heights) > 0 {
		first += heights[0]
	}
	if y+first > bottom && y > top {
		page++
		y = top
	}
	plan.Items = append(plan.Items, tableItem{Header: true, Page: page, Y: y})
	y += headerH

	for i, h := range heights {
		if y+h > bottom && y > top+headerH {
			page++
			y = top
			plan.Items = append(plan.Items, tableItem{Header: true, Page: page, Y: y})
			y += headerH
		}
		plan.Items = append(plan.Items, tableItem{Row: i, Page: page, Y: y})
		y += h
	}

	plan.EndPage, plan.EndY = page, y
	return plan
}

// placeBlock returns where an unsplittable block of height h goes when the
// cursor is at y: in place, or at top of a new page.
func placeBlock(y, h, top, bottom float64) (float64, bool) {
	if y+h > bottom && y > top {
		return top, true
	}
	return y, false
}
