package metrics

import (
	"context"
	"iter"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
	"github.com/YumeNoTenshi/utilwatch/pkg/cloud"
)

// Backend is the metric side of a cloud.Provider.
type Backend interface {
	QueryMetric(ctx context.Context, q cloud.MetricQuery) ([]cloud.Datapoint, error)
	ListDimensionSets(ctx context.Context, namespace, metric string, partial []cloud.Dimension, maxScan int) ([][]cloud.Dimension, error)
}

type FetcherConfig struct {
	Period           time.Duration
	Statistic        cloud.Statistic
	MaxDimensionScan int
}

// Window is the closed time range a run looks at.
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(end time.Time, length time.Duration) Window {
	end = end.UTC()
	return Window{Start: end.Add(-length), End: end}
}

// Result is a fetched scalar or the error that prevented fetching it. An
// errored Result always carries a None reading.
type Result struct {
	Reading models.Reading
	Err     error
}

func (r Result) Unavailable() bool {
	return r.Err != nil || !r.Reading.Valid
}

type Fetcher struct {
	backend Backend
	config  FetcherConfig
	log     *zap.Logger
}

func NewFetcher(backend Backend, config FetcherConfig, logger *zap.Logger) *Fetcher {
	if config.Period <= 0 {
		config.Period = time.Minute
	}
	if config.Statistic == "" {
		config.Statistic = cloud.StatAverage
	}
	return &Fetcher{
		backend: backend,
		config:  config,
		log:     logger.With(zap.String("component", "metrics")),
	}
}

func (f *Fetcher) query(src cloud.MetricSource, dims []cloud.Dimension, w Window) cloud.MetricQuery {
	return cloud.MetricQuery{
		Namespace:  src.Namespace,
		MetricName: src.Name,
		Dimensions: dims,
		Start:      w.Start,
		End:        w.End,
		Period:     f.config.Period,
		Statistic:  f.config.Statistic,
	}
}

// Latest returns the value of the most recent datapoint inside w.
func (f *Fetcher) Latest(ctx context.Context, src cloud.MetricSource, dims []cloud.Dimension, w Window) Result {
	points, err := f.backend.QueryMetric(ctx, f.query(src, dims, w))
	if err != nil {
		f.log.Debug("metric unavailable",
			zap.String("metric", src.Name),
			zap.String("code", cloud.ErrorCode(err)),
			zap.Error(err),
		)
		return Result{Err: err}
	}

	var (
		latest cloud.Datapoint
		found  bool
	)
	for _, p := range points {
		if !found || p.Timestamp.After(latest.Timestamp) {
			latest, found = p, true
		}
	}
	if !found || !latest.Valid {
		return Result{}
	}
	return Result{Reading: models.Some(latest.Value * scale(src))}
}

// Series yields the datapoints inside w in ascending time order. Each range
// over the returned sequence queries the backend again.
func (f *Fetcher) Series(ctx context.Context, src cloud.MetricSource, dims []cloud.Dimension, w Window) iter.Seq[models.MetricPoint] {
	q := f.query(src, dims, w)
	return func(yield func(models.MetricPoint) bool) {
		points, err := f.backend.QueryMetric(ctx, q)
		if err != nil {
			f.log.Debug("metric series unavailable",
				zap.String("metric", src.Name),
				zap.String("code", cloud.ErrorCode(err)),
				zap.Error(err),
			)
			return
		}
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Timestamp.Before(points[j].Timestamp)
		})
		for _, p := range points {
			if !p.Valid {
				continue
			}
			r := models.Some(p.Value * scale(src))
			if !r.Valid {
				continue
			}
			if !yield(models.NewMetricPoint(p.Timestamp, r.Value)) {
				return
			}
		}
	}
}

// Dimensions discovers the dimension sets src is published under for one
// instance. Sources that are not discovered have exactly one set.
func (f *Fetcher) Dimensions(ctx context.Context, src cloud.MetricSource, instanceID string) [][]cloud.Dimension {
	partial := src.Dimensions(instanceID)
	if !src.Discover {
		return [][]cloud.Dimension{partial}
	}
	sets, err := f.backend.ListDimensionSets(ctx, src.Namespace, src.Name, partial, f.config.MaxDimensionScan)
	if err != nil {
		f.log.Debug("metric catalog scan failed",
			zap.String("metric", src.Name),
			zap.String("instance_id", instanceID),
			zap.String("code", cloud.ErrorCode(err)),
			zap.Error(err),
		)
		return nil
	}
	return sets
}

// LatestAcross is the largest latest value over every dimension set.
func (f *Fetcher) LatestAcross(ctx context.Context, src cloud.MetricSource, sets [][]cloud.Dimension, w Window) models.Reading {
	results := make([]Result, 0, len(sets))
	for _, dims := range sets {
		results = append(results, f.Latest(ctx, src, dims, w))
	}
	return MaxAcross(results...)
}

// MergedSeries is MaxMerge over the series of every dimension set.
func (f *Fetcher) MergedSeries(ctx context.Context, src cloud.MetricSource, sets [][]cloud.Dimension, w Window) iter.Seq[models.MetricPoint] {
	series := make([]iter.Seq[models.MetricPoint], 0, len(sets))
	for _, dims := range sets {
		series = append(series, f.Series(ctx, src, dims, w))
	}
	return MaxMerge(series...)
}

func scale(src cloud.MetricSource) float64 {
	if src.Scale == 0 {
		return 1
	}
	return src.Scale
}
