package engine

import (
	"fmt"
	"strings"
)

// RowStock is the stock assessment of one shelf row.
type RowStock struct {
	RowIndex       int        `json:"row_index" yaml:"row_index"`
	Slots          int        `json:"slots" yaml:"slots"`
	Filled         int        `json:"filled" yaml:"filled"`
	Missing        int        `json:"missing" yaml:"missing"`
	Occupancy      float64    `json:"occupancy" yaml:"occupancy"`
	Level          StockLevel `json:"level" yaml:"level"`
	Recommendation string     `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
}

// GridDensity describes the inferred grid as a whole.
type GridDensity struct {
	Rows    int        `json:"estimated_rows"`
	Columns int        `json:"estimated_columns"`
	Real    int        `json:"real_detections"`
	Density float64    `json:"density"`
	Layout  LayoutType `json:"layout_type"`
}

// MeasureDensity computes the grid size, density and layout class.
func MeasureDensity(rows []ShelfRow, opts Options) GridDensity {
	g := GridDensity{Rows: len(rows)}
	for _, r := range rows {
		if len(r.Slots) > g.Columns {
			g.Columns = len(r.Slots)
		}
		g.Real += r.Filled()
	}
	if g.Rows > 0 && g.Columns > 0 {
		g.Density = float64(g.Real) / float64(g.Rows*g.Columns)
	}
	g.Layout = ClassifyLayout(g.Density, opts)
	return g
}

func ClassifyLayout(density float64, opts Options) LayoutType {
	switch {
	case density <= 0:
		return LayoutEmpty
	case density < opts.SparseBelow:
		return LayoutSparse
	case density > opts.DenseAbove:
		return LayoutDense
	default:
		return LayoutModerate
	}
}

func ClassifyStock(occupancy float64, opts Options) StockLevel {
	switch {
	case occupancy >= opts.FullAt:
		return StockFull
	case occupancy >= opts.PartialAt:
		return StockPartial
	default:
		return StockLow
	}
}

// AssessRows grades every row by its own slots, real and inferred.
func AssessRows(rows []ShelfRow, opts Options) []RowStock {
	out := make([]RowStock, 0, len(rows))
	for _, r := range rows {
		rs := RowStock{RowIndex: r.Index, Slots: len(r.Slots), Filled: r.Filled()}
		rs.Missing = rs.Slots - rs.Filled
		if rs.Slots > 0 {
			rs.Occupancy = float64(rs.Filled) / float64(rs.Slots)
		}
		rs.Level = ClassifyStock(rs.Occupancy, opts)
		if rs.Level != StockFull {
			rs.Recommendation = fmt.Sprintf("Restock row %d: %d of %d slots empty", r.Index, rs.Missing, rs.Slots)
		}
		out = append(out, rs)
	}
	return out
}

func describeStock(stock []RowStock) string {
	if len(stock) == 0 {
		return "No products detected"
	}
	parts := make([]string, 0, len(stock))
	var recs []string
	for _, s := range stock {
		parts = append(parts, fmt.Sprintf("row %d: %s (%.0f%%)", s.RowIndex, s.Level, s.Occupancy*100))
		if s.Recommendation != "" {
			recs = append(recs, s.Recommendation)
		}
	}
	text := strings.Join(parts, "; ") + "."
	if len(recs) == 0 {
		return text + " All rows fully stocked."
	}
	return text + " " + strings.Join(recs, ". ") + "."
}

func describeOrganization(g GridDensity, stock []RowStock) string {
	if g.Rows == 0 {
		return "No products detected"
	}
	head := fmt.Sprintf("%d rows x %d columns, %s layout", g.Rows, g.Columns, g.Layout)
	if g.Rows == 1 {
		return head + ". Single shelf row."
	}
	top, low, high := 0, stock[0].Filled, stock[0].Filled
	for i, s := range stock {
		if s.Filled > stock[top].Filled {
			top = i
		}
		if s.Filled < low {
			low = s.Filled
		}
		if s.Filled > high {
			high = s.Filled
		}
	}
	total := float64(g.Real)
	switch {
	case float64(stock[top].Filled)/total > 0.6:
		return fmt.Sprintf("%s. Concentrated on row %d (%d items).", head, stock[top].RowIndex, stock[top].Filled)
	case float64(high-low)/total < 0.2:
		return head + ". Evenly distributed across rows."
	default:
		counts := make([]string, 0, len(stock))
		for _, s := range stock {
			counts = append(counts, fmt.Sprintf("row %d: %d", s.RowIndex, s.Filled))
		}
		return fmt.Sprintf("%s. Uneven distribution: %s.", head, strings.Join(counts, ", "))
	}
}
