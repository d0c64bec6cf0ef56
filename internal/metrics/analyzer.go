package metrics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

type SeriesSummary struct {
	Points int
	Mean   float64
	Max    float64
}

func Summarize(points []models.MetricPoint) SeriesSummary {
	if len(points) == 0 {
		return SeriesSummary{}
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	return SeriesSummary{
		Points: len(points),
		Mean:   stat.Mean(values, nil),
		Max:    floats.Max(values),
	}
}

// FormatSeries renders points as "15:04=42%, 15:05=40%".
func FormatSeries(points []models.MetricPoint) string {
	if len(points) == 0 {
		return "no datapoints"
	}
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, fmt.Sprintf("%s=%.0f%%", p.Timestamp.UTC().Format("15:04"), p.Value))
	}
	return strings.Join(parts, ", ")
}
