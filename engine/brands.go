package engine

import (
	"math"
	"sort"
	"strings"
)

// BrandCount is one ranked entry of the brand tally.
type BrandCount struct {
	Label         string  `json:"label" yaml:"label"`
	Count         int     `json:"count" yaml:"count"`
	AvgConfidence float64 `json:"avg_confidence" yaml:"avg_confidence"`
}

// AggregateBrands tallies detections by label, most frequent first. Ties go to
// the higher mean confidence, then to the label seen first.
func AggregateBrands(dets []Detection) []BrandCount {
	type tally struct {
		count int
		sum   float64
		first int
	}
	byLabel := make(map[string]*tally)
	var order []string
	for _, d := range dets {
		t, ok := byLabel[d.ClassName]
		if !ok {
			t = &tally{first: len(order)}
			byLabel[d.ClassName] = t
			order = append(order, d.ClassName)
		}
		t.count++
		t.sum += d.Confidence
	}

	out := make([]BrandCount, 0, len(order))
	for _, label := range order {
		t := byLabel[label]
		out = append(out, BrandCount{
			Label:         label,
			Count:         t.count,
			AvgConfidence: round4(t.sum / float64(t.count)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].AvgConfidence != out[j].AvgConfidence {
			return out[i].AvgConfidence > out[j].AvgConfidence
		}
		return byLabel[out[i].Label].first < byLabel[out[j].Label].first
	})
	return out
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// CategoryOther collects labels that match no known category keyword.
const CategoryOther = "other"

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"soda", []string{"soda", "soft drink", "carbonated", "cola", "pepsi", "sprite", "fanta", "7up", "dr pepper", "mirinda"}},
	{"energy drinks", []string{"energy", "monster", "red bull", "redbull"}},
	{"water", []string{"water", "aquafina", "dasani"}},
	{"juice", []string{"juice", "fruit drink"}},
	{"sports drinks", []string{"sports drink", "gatorade", "powerade"}},
	{"tea", []string{"tea", "lipton", "nestea"}},
	{"coffee", []string{"coffee", "starbucks"}},
	{"beer", []string{"beer", "budweiser", "heineken", "corona"}},
	{"dairy", []string{"milk", "yogurt", "cheese", "dairy"}},
	{"snacks", []string{"chips", "snack", "crisps", "cookie", "candy", "chocolate"}},
}

// Categorize maps one label to a product category.
func Categorize(label string) string {
	l := strings.ToLower(label)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(l, kw) {
				return c.category
			}
		}
	}
	return CategoryOther
}

// Categories lists the distinct categories of a ranked brand list in rank order.
func Categories(brands []BrandCount) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(brands))
	for _, b := range brands {
		c := Categorize(b.Label)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
