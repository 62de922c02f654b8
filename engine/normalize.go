package engine

import (
	"math"
	"sort"
	"strings"
)

// NormalizeReport counts what the normalizer removed and why.
type NormalizeReport struct {
	Input           int `json:"input" yaml:"input"`
	LowConfidence   int `json:"low_confidence" yaml:"low_confidence"`
	InvalidGeometry int `json:"invalid_geometry" yaml:"invalid_geometry"`
	Suppressed      int `json:"suppressed" yaml:"suppressed"`
	Kept            int `json:"kept" yaml:"kept"`
}

// Normalize filters raw detections and applies per-class greedy non-max suppression.
// The result is ordered by confidence, highest first; equal confidences keep input order.
func Normalize(raw []RawDetection, confThreshold, iouThreshold float64) ([]Detection, NormalizeReport) {
	report := NormalizeReport{Input: len(raw)}
	candidates := make([]Detection, 0, len(raw))
	for _, r := range raw {
		if !validGeometry(r) {
			report.InvalidGeometry++
			continue
		}
		if math.IsNaN(r.Confidence) || r.Confidence > 1 || r.Confidence < confThreshold {
			report.LowConfidence++
			continue
		}
		candidates = append(candidates, Detection{
			ClassName:  strings.TrimSpace(r.ClassName),
			Confidence: r.Confidence,
			Box:        Box{XMin: r.XMin, YMin: r.YMin, XMax: r.XMax, YMax: r.YMax},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	kept := make([]Detection, 0, len(candidates))
	byClass := make(map[string][]Box)
	for _, c := range candidates {
		duplicate := false
		for _, k := range byClass[c.ClassName] {
			if c.Box.IoU(k) >= iouThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			report.Suppressed++
			continue
		}
		byClass[c.ClassName] = append(byClass[c.ClassName], c.Box)
		kept = append(kept, c)
	}
	report.Kept = len(kept)
	return kept, report
}

func validGeometry(r RawDetection) bool {
	for _, v := range []float64{r.XMin, r.YMin, r.XMax, r.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if r.XMin >= r.XMax || r.YMin >= r.YMax {
		return false
	}
	if r.ImageWidth > 0 && (r.XMin < 0 || r.XMax > r.ImageWidth) {
		return false
	}
	if r.ImageHeight > 0 && (r.YMin < 0 || r.YMax > r.ImageHeight) {
		return false
	}
	return true
}
