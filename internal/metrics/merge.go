package metrics

import (
	"iter"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

// MaxMerge combines several series of the same metric into one. Points are
// bucketed by their timestamp truncated to the second and each bucket keeps
// the largest value any series reported for it. Buckets are emitted in
// ascending order; a bucket no series reported is not emitted.
func MaxMerge(series ...iter.Seq[models.MetricPoint]) iter.Seq[models.MetricPoint] {
	return func(yield func(models.MetricPoint) bool) {
		buckets := make(map[int64]float64)
		for _, s := range series {
			if s == nil {
				continue
			}
			for p := range s {
				if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
					continue
				}
				k := p.Timestamp.Unix()
				if cur, ok := buckets[k]; !ok || p.Value > cur {
					buckets[k] = p.Value
				}
			}
		}
		for _, k := range slices.Sorted(maps.Keys(buckets)) {
			if !yield(models.MetricPoint{Timestamp: time.Unix(k, 0).UTC(), Value: buckets[k]}) {
				return
			}
		}
	}
}

// MaxAcross returns the largest available reading. Errored and None results
// are ignored; it is None only when nothing is available.
func MaxAcross(results ...Result) models.Reading {
	best := models.None
	for _, r := range results {
		if r.Unavailable() {
			continue
		}
		if !best.Valid || r.Reading.Value > best.Value {
			best = r.Reading
		}
	}
	return best
}
