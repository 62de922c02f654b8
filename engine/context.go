package engine

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// EmptySlotLabel marks an inferred gap in a row's product list.
const EmptySlotLabel = "(empty)"

// Context is the document handed to the question answering collaborator.
// Field order here is the serialized order.
type Context struct {
	Summary         LayoutSummary   `yaml:"summary"`
	Rows            []RowContext    `yaml:"rows"`
	Statistics      Statistics      `yaml:"statistics"`
	Normalization   NormalizeReport `yaml:"normalization"`
	Recommendations []string        `yaml:"recommendations"`
}

type RowContext struct {
	RowIndex  int        `yaml:"row_index"`
	Filled    int        `yaml:"filled"`
	Slots     int        `yaml:"slots"`
	Occupancy float64    `yaml:"occupancy"`
	Level     StockLevel `yaml:"level"`
	Products  []string   `yaml:"products"`
}

// NewContext derives the context document from an analysis.
func NewContext(a *Analysis) Context {
	c := Context{
		Summary:         a.Summary,
		Rows:            make([]RowContext, 0, len(a.Rows)),
		Statistics:      a.Statistics,
		Normalization:   a.Report,
		Recommendations: a.Recommendations,
	}
	c.Summary.Density = round4(c.Summary.Density)
	for i, r := range a.Rows {
		rc := RowContext{RowIndex: r.Index, Products: make([]string, 0, len(r.Slots))}
		if i < len(a.Stock) {
			s := a.Stock[i]
			rc.Filled, rc.Slots, rc.Occupancy, rc.Level = s.Filled, s.Slots, round4(s.Occupancy), s.Level
		}
		for _, s := range r.Slots {
			if s.Empty() {
				rc.Products = append(rc.Products, EmptySlotLabel)
				continue
			}
			rc.Products = append(rc.Products, s.Detection.ClassName)
		}
		c.Rows = append(c.Rows, rc)
	}
	if c.Recommendations == nil {
		c.Recommendations = []string{}
	}
	return c
}

// BuildContext serializes the analysis as YAML. Identical analyses give identical bytes.
func BuildContext(a *Analysis) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(NewContext(a)); err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseContext reads back a document produced by BuildContext.
func ParseContext(data []byte) (*Context, error) {
	var c Context
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse context: %w", err)
	}
	return &c, nil
}
