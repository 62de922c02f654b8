package gateway

import (
	"context"
	"fmt"
	"strings"

	"ShelfLayoutServer/engine"
)

// LocalAnswerer answers common shelf questions straight from the context
// document, without any remote service. Questions it cannot route, and
// contexts without products, yield ErrNoAnswer.
type LocalAnswerer struct{}

func NewLocalAnswerer() *LocalAnswerer { return &LocalAnswerer{} }

type questionRoute struct {
	words  []string
	answer func(c *engine.Context, q string) string
}

var localRoutes = []questionRoute{
	{words: []string{"empty", "space", "vacant", "missing", "restock", "gap"}, answer: answerSpace},
	{words: []string{"how many", "count", "number"}, answer: answerCount},
	{words: []string{"where", "position", "location"}, answer: answerWhere},
	{words: []string{"brand"}, answer: answerBrand},
	{words: []string{"what", "detect", "see", "find", "which"}, answer: answerWhat},
	{words: []string{"stock", "summary", "overview", "status", "layout", "shelf"}, answer: answerOverview},
}

func (LocalAnswerer) Answer(ctx context.Context, layoutContext, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c, err := engine.ParseContext([]byte(layoutContext))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAnswer, err)
	}
	if len(c.Summary.BrandsDetected) == 0 {
		return "", ErrNoAnswer
	}
	q := strings.ToLower(question)
	for _, r := range localRoutes {
		if containsAny(q, r.words) {
			return r.answer(c, q), nil
		}
	}
	if b, ok := mentionedBrand(c, q); ok {
		return describeBrand(b), nil
	}
	return "", ErrNoAnswer
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func mentionedBrand(c *engine.Context, q string) (engine.BrandCount, bool) {
	for _, b := range c.Summary.BrandsDetected {
		if strings.Contains(q, strings.ToLower(b.Label)) {
			return b, true
		}
	}
	return engine.BrandCount{}, false
}

func describeBrand(b engine.BrandCount) string {
	return fmt.Sprintf("I detected %d %s (average confidence %.2f).", b.Count, b.Label, b.AvgConfidence)
}

func brandList(brands []engine.BrandCount) string {
	parts := make([]string, len(brands))
	for i, b := range brands {
		parts[i] = fmt.Sprintf("%d %s", b.Count, b.Label)
	}
	return strings.Join(parts, ", ")
}

func answerCount(c *engine.Context, q string) string {
	if b, ok := mentionedBrand(c, q); ok {
		return describeBrand(b)
	}
	total := 0
	for _, b := range c.Summary.BrandsDetected {
		total += b.Count
	}
	return fmt.Sprintf("I detected %d products in total: %s.", total, brandList(c.Summary.BrandsDetected))
}

func answerWhere(c *engine.Context, q string) string {
	b, ok := mentionedBrand(c, q)
	if !ok {
		return c.Summary.ShelfOrganization
	}
	var places []string
	for _, r := range c.Rows {
		var cols []string
		for i, p := range r.Products {
			if p == b.Label {
				cols = append(cols, fmt.Sprint(i))
			}
		}
		if len(cols) > 0 {
			places = append(places, fmt.Sprintf("row %d (column %s)", r.RowIndex, strings.Join(cols, ", ")))
		}
	}
	return fmt.Sprintf("%s is on %s.", b.Label, strings.Join(places, " and "))
}

func answerSpace(c *engine.Context, _ string) string {
	total := 0
	var parts []string
	for _, r := range c.Rows {
		missing := r.Slots - r.Filled
		if missing <= 0 {
			continue
		}
		total += missing
		parts = append(parts, fmt.Sprintf("row %d has %d", r.RowIndex, missing))
	}
	if total == 0 {
		return "No empty slots detected, every row is fully stocked."
	}
	return fmt.Sprintf("%d empty slot(s): %s.", total, strings.Join(parts, ", "))
}

func answerBrand(c *engine.Context, q string) string {
	if b, ok := mentionedBrand(c, q); ok {
		return describeBrand(b)
	}
	brands := c.Summary.BrandsDetected
	if len(brands) == 1 {
		return fmt.Sprintf("Only one brand is on the shelf: %s (%d items).", brands[0].Label, brands[0].Count)
	}
	return fmt.Sprintf("I found %d brands, most present first: %s.", len(brands), brandList(brands))
}

func answerWhat(c *engine.Context, _ string) string {
	s := c.Summary
	return fmt.Sprintf("I can see %s across %d rows. Categories: %s.",
		brandList(s.BrandsDetected), s.EstimatedRows, strings.Join(s.ProductCategories, ", "))
}

func answerOverview(c *engine.Context, _ string) string {
	s := c.Summary
	return fmt.Sprintf("The shelf has a %s layout (density %.0f%%). %s",
		s.LayoutType, s.Density*100, s.StockLevels)
}
