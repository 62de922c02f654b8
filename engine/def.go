package engine

import (
	"fmt"
	"math"
)

const (
	DefaultConfThreshold = 0.25
	DefaultIoUThreshold  = 0.45
	DefaultRowGapFactor  = 0.6
	DefaultColGapFactor  = 1.5
	DefaultSparseBelow   = 0.3
	DefaultDenseAbove    = 0.8
	DefaultFullAt        = 0.9
	DefaultPartialAt     = 0.4
)

// RawDetection is one record as produced by the detection collaborator.
// Image dimensions are optional; zero disables the bounds check.
type RawDetection struct {
	ClassName   string  `json:"class_name" yaml:"class_name"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
	XMin        float64 `json:"x_min" yaml:"x_min"`
	YMin        float64 `json:"y_min" yaml:"y_min"`
	XMax        float64 `json:"x_max" yaml:"x_max"`
	YMax        float64 `json:"y_max" yaml:"y_max"`
	ImageWidth  float64 `json:"image_width,omitempty" yaml:"image_width,omitempty"`
	ImageHeight float64 `json:"image_height,omitempty" yaml:"image_height,omitempty"`
}

// Box is an axis aligned rectangle, (XMin,YMin) top-left.
type Box struct {
	XMin float64 `json:"x_min" yaml:"x_min"`
	YMin float64 `json:"y_min" yaml:"y_min"`
	XMax float64 `json:"x_max" yaml:"x_max"`
	YMax float64 `json:"y_max" yaml:"y_max"`
}

func (b Box) Width() float64  { return b.XMax - b.XMin }
func (b Box) Height() float64 { return b.YMax - b.YMin }
func (b Box) Area() float64   { return b.Width() * b.Height() }

// Center returns (cx, cy).
func (b Box) Center() (float64, float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// IoU is the intersection-over-union of two boxes, 0 when they do not overlap.
func (b Box) IoU(o Box) float64 {
	iw := math.Min(b.XMax, o.XMax) - math.Max(b.XMin, o.XMin)
	ih := math.Min(b.YMax, o.YMax) - math.Max(b.YMin, o.YMin)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is a validated, deduplicated detection. It is handled by value
// and never modified after normalization.
type Detection struct {
	ClassName  string  `json:"class_name" yaml:"class_name"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Box        Box     `json:"box" yaml:"box"`
}

func (d Detection) CX() float64 {
	cx, _ := d.Box.Center()
	return cx
}

func (d Detection) CY() float64 {
	_, cy := d.Box.Center()
	return cy
}

// Slot is one position of a shelf row. A nil Detection marks an inferred empty slot.
type Slot struct {
	Row       int        `json:"row"`
	Column    int        `json:"column"`
	Detection *Detection `json:"detection,omitempty"`
}

func (s Slot) Empty() bool { return s.Detection == nil }

// ShelfRow is a horizontal group of slots, ordered left to right.
type ShelfRow struct {
	Index   int     `json:"row_index"`
	CenterY float64 `json:"center_y"`
	Slots   []Slot  `json:"slots"`
}

// Filled counts the slots holding a real detection.
func (r ShelfRow) Filled() int {
	n := 0
	for _, s := range r.Slots {
		if !s.Empty() {
			n++
		}
	}
	return n
}

// Detections returns the real detections of the row in column order.
func (r ShelfRow) Detections() []Detection {
	out := make([]Detection, 0, len(r.Slots))
	for _, s := range r.Slots {
		if !s.Empty() {
			out = append(out, *s.Detection)
		}
	}
	return out
}

type LayoutType string

const (
	LayoutEmpty    LayoutType = "empty"
	LayoutSparse   LayoutType = "sparse"
	LayoutModerate LayoutType = "moderate"
	LayoutDense    LayoutType = "dense"
)

type StockLevel string

const (
	StockFull    StockLevel = "full"
	StockPartial StockLevel = "partial"
	StockLow     StockLevel = "low"
)

// Options carries every heuristic threshold of the pipeline.
type Options struct {
	ConfThreshold float64 `mapstructure:"conf_threshold" json:"conf_threshold"`
	IoUThreshold  float64 `mapstructure:"iou_threshold" json:"iou_threshold"`
	RowGapFactor  float64 `mapstructure:"row_gap_factor" json:"row_gap_factor"`
	ColGapFactor  float64 `mapstructure:"col_gap_factor" json:"col_gap_factor"`
	SparseBelow   float64 `mapstructure:"sparse_below" json:"sparse_below"`
	DenseAbove    float64 `mapstructure:"dense_above" json:"dense_above"`
	FullAt        float64 `mapstructure:"full_at" json:"full_at"`
	PartialAt     float64 `mapstructure:"partial_at" json:"partial_at"`
}

func DefaultOptions() Options {
	return Options{
		ConfThreshold: DefaultConfThreshold,
		IoUThreshold:  DefaultIoUThreshold,
		RowGapFactor:  DefaultRowGapFactor,
		ColGapFactor:  DefaultColGapFactor,
		SparseBelow:   DefaultSparseBelow,
		DenseAbove:    DefaultDenseAbove,
		FullAt:        DefaultFullAt,
		PartialAt:     DefaultPartialAt,
	}
}

// Validate reports the first out-of-range threshold.
func (o Options) Validate() error {
	unit := []struct {
		name string
		v    float64
	}{
		{"conf_threshold", o.ConfThreshold},
		{"iou_threshold", o.IoUThreshold},
		{"sparse_below", o.SparseBelow},
		{"dense_above", o.DenseAbove},
		{"full_at", o.FullAt},
		{"partial_at", o.PartialAt},
	}
	for _, u := range unit {
		if u.v < 0 || u.v > 1 || math.IsNaN(u.v) {
			return fmt.Errorf("%s must be between 0.0 and 1.0, got %f", u.name, u.v)
		}
	}
	if o.IoUThreshold == 0 {
		return fmt.Errorf("iou_threshold must be greater than 0")
	}
	if !(o.RowGapFactor > 0) {
		return fmt.Errorf("row_gap_factor must be positive, got %f", o.RowGapFactor)
	}
	if !(o.ColGapFactor > 0) {
		return fmt.Errorf("col_gap_factor must be positive, got %f", o.ColGapFactor)
	}
	if o.SparseBelow > o.DenseAbove {
		return fmt.Errorf("sparse_below (%f) exceeds dense_above (%f)", o.SparseBelow, o.DenseAbove)
	}
	if o.PartialAt > o.FullAt {
		return fmt.Errorf("partial_at (%f) exceeds full_at (%f)", o.PartialAt, o.FullAt)
	}
	return nil
}
