package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(class string, conf, x1, y1, x2, y2 float64) RawDetection {
	return RawDetection{ClassName: class, Confidence: conf, XMin: x1, YMin: y1, XMax: x2, YMax: y2}
}

// grid lays out rows x cols 10x20 boxes at a 15px pitch, skipping the given cells.
func grid(class string, conf float64, rows, cols int, skip map[[2]int]bool) []RawDetection {
	var out []RawDetection
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if skip[[2]int{r, c}] {
				continue
			}
			x, y := float64(c*15), float64(r*20)
			out = append(out, box(class, conf, x, y, x+10, y+20))
		}
	}
	return out
}

func randomDetections(seed uint64, n int) []RawDetection {
	rng := rand.New(rand.NewPCG(seed, seed*31+7))
	labels := []string{"cola", "water", "juice"}
	out := make([]RawDetection, 0, n)
	for i := 0; i < n; i++ {
		x, y := rng.Float64()*600, rng.Float64()*400
		w, h := 10+rng.Float64()*40, 20+rng.Float64()*60
		out = append(out, RawDetection{
			ClassName:   labels[rng.IntN(len(labels))],
			Confidence:  rng.Float64(),
			XMin:        x,
			YMin:        y,
			XMax:        x + w,
			YMax:        y + h,
			ImageWidth:  640,
			ImageHeight: 480,
		})
	}
	return out
}

func TestRun_Scenarios(t *testing.T) {
	opts := DefaultOptions()

	t.Run("full 2x3 grid", func(t *testing.T) {
		a := Run(grid("cola", 0.9, 2, 3, nil), opts)
		s := a.Summary
		assert.Equal(t, 2, s.EstimatedRows)
		assert.Equal(t, 3, s.EstimatedColumns)
		assert.Equal(t, 1.0, s.Density)
		assert.Equal(t, LayoutDense, s.LayoutType)
		assert.Equal(t, []BrandCount{{Label: "cola", Count: 6, AvgConfidence: 0.9}}, s.BrandsDetected)
		assert.Equal(t, []string{"soda"}, s.ProductCategories)
		assert.Contains(t, s.ShelfOrganization, "Evenly distributed")
		assert.Contains(t, s.StockLevels, "All rows fully stocked")
		for _, st := range a.Stock {
			assert.Equal(t, StockFull, st.Level)
			assert.Empty(t, st.Recommendation)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		a := Run(nil, opts)
		s := a.Summary
		assert.Equal(t, 0, s.EstimatedRows)
		assert.Equal(t, 0, s.EstimatedColumns)
		assert.Equal(t, 0.0, s.Density)
		assert.Equal(t, LayoutEmpty, s.LayoutType)
		assert.NotNil(t, s.BrandsDetected)
		assert.Empty(t, s.BrandsDetected)
		assert.Empty(t, s.ProductCategories)
		assert.Equal(t, "No products detected", s.StockLevels)
		assert.Equal(t, []string{"Shelf appears empty - consider restocking"}, a.Recommendations)
	})

	t.Run("middle product missing", func(t *testing.T) {
		a := Run(grid("water", 0.8, 1, 3, map[[2]int]bool{{0, 1}: true}), opts)
		require.Len(t, a.Rows, 1)
		slots := a.Rows[0].Slots
		require.Len(t, slots, 3)
		assert.False(t, slots[0].Empty())
		assert.True(t, slots[1].Empty())
		assert.False(t, slots[2].Empty())
		for i, sl := range slots {
			assert.Equal(t, i, sl.Column)
		}
		require.Len(t, a.Stock, 1)
		assert.InDelta(t, 2.0/3.0, a.Stock[0].Occupancy, 1e-9)
		assert.Equal(t, StockPartial, a.Stock[0].Level)
		assert.Equal(t, "Restock row 0: 1 of 3 slots empty", a.Stock[0].Recommendation)
		assert.Equal(t, LayoutModerate, a.Summary.LayoutType)
	})

	t.Run("spaced but fully stocked row", func(t *testing.T) {
		var raw []RawDetection
		for c := 0; c < 4; c++ {
			x := float64(c * 16)
			raw = append(raw, box("cola", 0.9, x, 0, x+10, 20))
		}
		a := Run(raw, opts)
		s := a.Summary
		assert.Equal(t, 1, s.EstimatedRows)
		assert.Equal(t, 4, s.EstimatedColumns)
		assert.Equal(t, 1.0, s.Density)
		assert.Equal(t, LayoutDense, s.LayoutType)
		require.Len(t, a.Stock, 1)
		assert.Equal(t, StockFull, a.Stock[0].Level)
		assert.Contains(t, s.StockLevels, "All rows fully stocked")
	})

	t.Run("short row is graded on its own slots", func(t *testing.T) {
		raw := append(grid("cola", 0.9, 1, 5, nil), grid("water", 0.9, 2, 2, nil)[2:]...)
		a := Run(raw, opts)
		require.Len(t, a.Stock, 2)
		assert.Equal(t, 5, a.Summary.EstimatedColumns)
		assert.Equal(t, RowStock{RowIndex: 1, Slots: 2, Filled: 2, Occupancy: 1, Level: StockFull}, a.Stock[1])
		assert.Contains(t, a.Summary.StockLevels, "All rows fully stocked")
		assert.InDelta(t, 7.0/10.0, a.Summary.Density, 1e-12)
	})

	t.Run("invalid geometry is absorbed", func(t *testing.T) {
		raw := append(grid("cola", 0.9, 1, 2, nil),
			box("cola", 0.9, 30, 0, 20, 20),
			RawDetection{ClassName: "cola", Confidence: 0.9, XMin: 600, YMin: 0, XMax: 700, YMax: 20, ImageWidth: 640, ImageHeight: 480},
		)
		a := Run(raw, opts)
		assert.Equal(t, 2, a.Report.InvalidGeometry)
		assert.Equal(t, 2, a.Report.Kept)
		assert.Equal(t, 1, a.Summary.EstimatedRows)
	})
}

func TestRun_Properties(t *testing.T) {
	opts := DefaultOptions()
	for seed := uint64(1); seed <= 40; seed++ {
		raw := randomDetections(seed, int(seed%25))
		a := Run(raw, opts)
		s := a.Summary

		assert.GreaterOrEqual(t, s.Density, 0.0)
		assert.LessOrEqual(t, s.Density, 1.0)
		assert.Equal(t, s.Density == 0, s.EstimatedRows == 0 || s.EstimatedColumns == 0, "seed %d", seed)

		placed := 0
		for i, r := range a.Rows {
			assert.Equal(t, i, r.Index)
			if i > 0 {
				assert.Greater(t, r.CenterY, a.Rows[i-1].CenterY, "seed %d", seed)
			}
			prevCX := -1.0
			for j, sl := range r.Slots {
				assert.Equal(t, j, sl.Column)
				if !sl.Empty() {
					assert.Greater(t, sl.Detection.CX(), prevCX)
					prevCX = sl.Detection.CX()
					placed++
				}
			}
		}
		assert.Equal(t, a.Report.Kept, placed, "every retained detection sits in exactly one row")

		again := Run(raw, opts)
		assert.Equal(t, a, again)
		c1, err := BuildContext(a)
		require.NoError(t, err)
		c2, err := BuildContext(again)
		require.NoError(t, err)
		assert.Equal(t, c1, c2)
	}
}

func TestRun_ResolutionIndependent(t *testing.T) {
	raw := grid("juice", 0.7, 3, 4, map[[2]int]bool{{1, 2}: true})
	scaled := make([]RawDetection, len(raw))
	for i, r := range raw {
		scaled[i] = box(r.ClassName, r.Confidence, r.XMin*8, r.YMin*8, r.XMax*8, r.YMax*8)
	}
	small := Run(raw, DefaultOptions()).Summary
	large := Run(scaled, DefaultOptions()).Summary
	assert.Equal(t, small.EstimatedRows, large.EstimatedRows)
	assert.Equal(t, small.EstimatedColumns, large.EstimatedColumns)
	assert.Equal(t, small.Density, large.Density)
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"conf above one", func(o *Options) { o.ConfThreshold = 1.2 }},
		{"iou zero", func(o *Options) { o.IoUThreshold = 0 }},
		{"negative row factor", func(o *Options) { o.RowGapFactor = -1 }},
		{"zero col factor", func(o *Options) { o.ColGapFactor = 0 }},
		{"sparse above dense", func(o *Options) { o.SparseBelow, o.DenseAbove = 0.9, 0.5 }},
		{"partial above full", func(o *Options) { o.PartialAt, o.FullAt = 0.95, 0.9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			assert.Error(t, o.Validate())
		})
	}
}
