// Package engine turns the raw detections of one shelf image into a structured
// shelf model: rows, columns, occupancy, stock levels and brand tallies.
//
// Every function here is pure. Run may be called from any number of goroutines
// at once; nothing is cached between calls.
package engine

// LayoutSummary is the stable output record handed to persistence and presentation.
type LayoutSummary struct {
	EstimatedRows     int          `json:"estimated_rows" yaml:"estimated_rows"`
	EstimatedColumns  int          `json:"estimated_columns" yaml:"estimated_columns"`
	Density           float64      `json:"density" yaml:"density"`
	LayoutType        LayoutType   `json:"layout_type" yaml:"layout_type"`
	BrandsDetected    []BrandCount `json:"brands_detected" yaml:"brands_detected"`
	ProductCategories []string     `json:"product_categories" yaml:"product_categories"`
	ShelfOrganization string       `json:"shelf_organization" yaml:"shelf_organization"`
	StockLevels       string       `json:"stock_levels" yaml:"stock_levels"`
}

// Analysis bundles the summary with the intermediate structures it was derived from.
type Analysis struct {
	Summary         LayoutSummary   `json:"summary"`
	Rows            []ShelfRow      `json:"rows"`
	Stock           []RowStock      `json:"stock"`
	Report          NormalizeReport `json:"report"`
	Statistics      Statistics      `json:"statistics"`
	Recommendations []string        `json:"recommendations"`
}

// Run executes normalizer, row clusterer, column assigner, stock analyzer and
// brand aggregator in sequence. It never fails: bad geometry is dropped and
// counted, an empty input yields an "empty" summary.
func Run(raw []RawDetection, opts Options) *Analysis {
	dets, report := Normalize(raw, opts.ConfThreshold, opts.IoUThreshold)
	rows := BuildGrid(dets, opts)
	grid := MeasureDensity(rows, opts)
	stock := AssessRows(rows, opts)

	// row-major order keeps the first-seen tie break independent of input order
	var placed []Detection
	for _, r := range rows {
		placed = append(placed, r.Detections()...)
	}
	brands := AggregateBrands(placed)

	if rows == nil {
		rows = []ShelfRow{}
	}
	return &Analysis{
		Summary: LayoutSummary{
			EstimatedRows:     grid.Rows,
			EstimatedColumns:  grid.Columns,
			Density:           grid.Density,
			LayoutType:        grid.Layout,
			BrandsDetected:    brands,
			ProductCategories: Categories(brands),
			ShelfOrganization: describeOrganization(grid, stock),
			StockLevels:       describeStock(stock),
		},
		Rows:            rows,
		Stock:           stock,
		Report:          report,
		Statistics:      ComputeStatistics(placed),
		Recommendations: recommend(grid, stock, brands),
	}
}

func recommend(g GridDensity, stock []RowStock, brands []BrandCount) []string {
	out := []string{}
	if g.Layout == LayoutEmpty {
		return append(out, "Shelf appears empty - consider restocking")
	}
	for _, s := range stock {
		if s.Recommendation != "" {
			out = append(out, s.Recommendation)
		}
	}
	switch g.Layout {
	case LayoutSparse:
		out = append(out, "Low product density - opportunity to add more products")
	case LayoutDense:
		out = append(out, "Good product density - maintain current stock levels")
	}
	if len(brands) == 1 {
		out = append(out, "Limited brand variety - consider adding more brands")
	}
	return out
}
