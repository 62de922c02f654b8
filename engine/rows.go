package engine

import "sort"

// median of a copy of vs; the mean of the two middle values for even lengths.
func median(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// ClusterRows groups detections into shelf rows, top to bottom. A new row starts
// whenever the vertical distance between consecutive centers exceeds
// rowGapFactor times the median detection height.
func ClusterRows(dets []Detection, rowGapFactor float64) [][]Detection {
	if len(dets) == 0 {
		return nil
	}
	heights := make([]float64, len(dets))
	for i, d := range dets {
		heights[i] = d.Box.Height()
	}
	threshold := rowGapFactor * median(heights)

	sorted := append([]Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CY() < sorted[j].CY()
	})

	var rows [][]Detection
	current := []Detection{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].CY()-sorted[i-1].CY() > threshold {
			rows = append(rows, current)
			current = nil
		}
		current = append(current, sorted[i])
	}
	return append(rows, current)
}
