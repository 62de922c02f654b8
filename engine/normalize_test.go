package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_IoU(t *testing.T) {
	a := Box{0, 0, 10, 10}
	assert.InDelta(t, 1.0, a.IoU(a), 1e-12)
	assert.InDelta(t, 0.6, a.IoU(Box{0, 0, 10, 6}), 1e-12)
	assert.Equal(t, 0.0, a.IoU(Box{10, 0, 20, 10}), "touching edges do not overlap")
	assert.Equal(t, 0.0, a.IoU(Box{50, 50, 60, 60}))
}

func TestNormalize(t *testing.T) {
	t.Run("overlapping duplicate keeps the most confident", func(t *testing.T) {
		raw := []RawDetection{
			box("cola", 0.6, 0, 0, 10, 6),
			box("cola", 0.9, 0, 0, 10, 10),
		}
		kept, report := Normalize(raw, DefaultConfThreshold, DefaultIoUThreshold)
		require.Len(t, kept, 1)
		assert.Equal(t, 0.9, kept[0].Confidence)
		assert.Equal(t, 1, report.Suppressed)
		assert.Equal(t, 1, report.Kept)
	})

	t.Run("suppression is per class", func(t *testing.T) {
		raw := []RawDetection{
			box("cola", 0.9, 0, 0, 10, 10),
			box("water", 0.8, 0, 0, 10, 10),
		}
		kept, report := Normalize(raw, DefaultConfThreshold, DefaultIoUThreshold)
		assert.Len(t, kept, 2)
		assert.Zero(t, report.Suppressed)
	})

	t.Run("low confidence and malformed boxes are dropped", func(t *testing.T) {
		raw := []RawDetection{
			box("cola", 0.1, 0, 0, 10, 10),
			box("cola", 0.9, 10, 0, 10, 10),
			box("cola", 0.9, 0, 10, 10, 5),
			box("cola", 0.9, math.NaN(), 0, 10, 10),
			{ClassName: "cola", Confidence: 0.9, XMin: -1, YMin: 0, XMax: 10, YMax: 10, ImageWidth: 100, ImageHeight: 100},
			{ClassName: "cola", Confidence: 0.9, XMin: 0, YMin: 0, XMax: 10, YMax: 101, ImageWidth: 100, ImageHeight: 100},
			{ClassName: "cola", Confidence: 0.9, XMin: 0, YMin: 0, XMax: 10, YMax: 100, ImageWidth: 100, ImageHeight: 100},
		}
		kept, report := Normalize(raw, DefaultConfThreshold, DefaultIoUThreshold)
		require.Len(t, kept, 1)
		assert.Equal(t, NormalizeReport{Input: 7, LowConfidence: 1, InvalidGeometry: 5, Kept: 1}, report)
	})

	t.Run("empty input", func(t *testing.T) {
		kept, report := Normalize(nil, DefaultConfThreshold, DefaultIoUThreshold)
		assert.Empty(t, kept)
		assert.Equal(t, NormalizeReport{}, report)
	})

	t.Run("equal confidences keep input order", func(t *testing.T) {
		raw := []RawDetection{
			box("a", 0.5, 0, 0, 10, 10),
			box("b", 0.5, 20, 0, 30, 10),
			box("c", 0.7, 40, 0, 50, 10),
		}
		kept, _ := Normalize(raw, DefaultConfThreshold, DefaultIoUThreshold)
		require.Len(t, kept, 3)
		assert.Equal(t, []string{"c", "a", "b"}, []string{kept[0].ClassName, kept[1].ClassName, kept[2].ClassName})
	})
}

func TestNormalize_NoSameClassOverlapSurvives(t *testing.T) {
	for seed := uint64(1); seed <= 30; seed++ {
		for _, iou := range []float64{0.3, 0.45, 0.7} {
			kept, report := Normalize(randomDetections(seed, 60), DefaultConfThreshold, iou)
			assert.Equal(t, report.Input, report.Kept+report.Suppressed+report.LowConfidence+report.InvalidGeometry)
			for i := range kept {
				for j := i + 1; j < len(kept); j++ {
					if kept[i].ClassName != kept[j].ClassName {
						continue
					}
					assert.Less(t, kept[i].Box.IoU(kept[j].Box), iou, "seed %d", seed)
				}
			}
		}
	}
}
