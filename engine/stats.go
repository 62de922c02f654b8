package engine

import (
	"math"
	"strings"
)

var beverageTerms = []string{"bottle", "can", "cup", "glass", "drink", "container"}

// Statistics summarises confidence and size of the retained detections.
type Statistics struct {
	Total            int     `json:"total" yaml:"total"`
	AvgConfidence    float64 `json:"avg_confidence" yaml:"avg_confidence"`
	MinConfidence    float64 `json:"min_confidence" yaml:"min_confidence"`
	MaxConfidence    float64 `json:"max_confidence" yaml:"max_confidence"`
	HighConfidence   int     `json:"high_confidence" yaml:"high_confidence"`
	MediumConfidence int     `json:"medium_confidence" yaml:"medium_confidence"`
	LowConfidence    int     `json:"low_confidence" yaml:"low_confidence"`
	AvgWidth         float64 `json:"avg_width" yaml:"avg_width"`
	AvgHeight        float64 `json:"avg_height" yaml:"avg_height"`
	AvgArea          float64 `json:"avg_area" yaml:"avg_area"`
	LargestArea      float64 `json:"largest_area" yaml:"largest_area"`
	SmallestArea     float64 `json:"smallest_area" yaml:"smallest_area"`
	BeverageObjects  int     `json:"beverage_objects" yaml:"beverage_objects"`
	BeverageRatio    float64 `json:"beverage_ratio" yaml:"beverage_ratio"`
}

func ComputeStatistics(dets []Detection) Statistics {
	s := Statistics{Total: len(dets)}
	if len(dets) == 0 {
		return s
	}
	s.MinConfidence = math.Inf(1)
	s.SmallestArea = math.Inf(1)
	var conf, w, h, area float64
	for _, d := range dets {
		conf += d.Confidence
		w += d.Box.Width()
		h += d.Box.Height()
		a := d.Box.Area()
		area += a
		s.MinConfidence = math.Min(s.MinConfidence, d.Confidence)
		s.MaxConfidence = math.Max(s.MaxConfidence, d.Confidence)
		s.LargestArea = math.Max(s.LargestArea, a)
		s.SmallestArea = math.Min(s.SmallestArea, a)
		switch {
		case d.Confidence > 0.7:
			s.HighConfidence++
		case d.Confidence >= 0.3:
			s.MediumConfidence++
		default:
			s.LowConfidence++
		}
		if isBeverage(d.ClassName) {
			s.BeverageObjects++
		}
	}
	n := float64(len(dets))
	s.AvgConfidence = round4(conf / n)
	s.AvgWidth = round4(w / n)
	s.AvgHeight = round4(h / n)
	s.AvgArea = round4(area / n)
	s.BeverageRatio = round4(float64(s.BeverageObjects) / n)
	return s
}

func isBeverage(label string) bool {
	l := strings.ToLower(label)
	for _, t := range beverageTerms {
		if strings.Contains(l, t) {
			return true
		}
	}
	return false
}
