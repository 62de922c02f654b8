package engine

import (
	"math"
	"sort"
)

// AssignColumns orders one row left to right and inserts empty slots into gaps.
//
// A gap is the space between the right edge of one product and the left edge
// of the next. It counts as missing products when it is wider than
// colGapFactor unit widths (median width within the row). The gap is filled
// at the row's pitch, unit width plus the usual spacing between neighbours,
// with at least one empty slot.
func AssignColumns(index int, members []Detection, colGapFactor float64) ShelfRow {
	row := ShelfRow{Index: index}
	if len(members) == 0 {
		return row
	}
	sorted := append([]Detection(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CX() < sorted[j].CX()
	})

	widths := make([]float64, len(sorted))
	centers := make([]float64, len(sorted))
	for i, d := range sorted {
		widths[i] = d.Box.Width()
		centers[i] = d.CY()
	}
	unit := median(widths)
	row.CenterY = median(centers)
	threshold := colGapFactor * unit
	spacing := rowSpacing(sorted, unit, threshold)

	column := 0
	for i := range sorted {
		if i > 0 && unit > 0 {
			gap := sorted[i].Box.XMin - sorted[i-1].Box.XMax
			if gap > threshold {
				missing := int(math.Round((gap - spacing) / (unit + spacing)))
				if missing < 1 {
					missing = 1
				}
				for k := 0; k < missing; k++ {
					row.Slots = append(row.Slots, Slot{Row: index, Column: column})
					column++
				}
			}
		}
		d := sorted[i]
		row.Slots = append(row.Slots, Slot{Row: index, Column: column, Detection: &d})
		column++
	}
	return row
}

// rowSpacing is the median edge spacing between neighbours that are not gaps.
// Overlapping neighbours count as zero. A row without such pairs assumes half
// a unit.
func rowSpacing(sorted []Detection, unit, threshold float64) float64 {
	var spaces []float64
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Box.XMin - sorted[i-1].Box.XMax
		if gap <= threshold {
			spaces = append(spaces, math.Max(gap, 0))
		}
	}
	if len(spaces) == 0 {
		return unit / 2
	}
	return median(spaces)
}

// BuildGrid runs the row clusterer and the column assigner.
func BuildGrid(dets []Detection, opts Options) []ShelfRow {
	clusters := ClusterRows(dets, opts.RowGapFactor)
	rows := make([]ShelfRow, 0, len(clusters))
	for i, members := range clusters {
		rows = append(rows, AssignColumns(i, members, opts.ColGapFactor))
	}
	return rows
}
