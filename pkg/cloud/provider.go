package cloud

import (
	"context"
	"time"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

// Provider is the backend a compute check runs against: one inventory, one
// metrics store and its catalog.
type Provider interface {
	// Name is the short provider id ("aws", "gcp").
	Name() string

	// Service is the product name of the compute service, used in report titles.
	Service() string

	// Account returns a human label for the account or project being checked.
	Account(ctx context.Context) string

	// ListInstances walks the inventory and stops once filter.MaxInstances
	// records have been collected.
	ListInstances(ctx context.Context, filter InstanceFilter) ([]models.Instance, error)

	// QueryMetric returns the raw datapoints of one metric over a time range.
	QueryMetric(ctx context.Context, q MetricQuery) ([]Datapoint, error)

	// ListDimensionSets scans the metric catalog for the full dimension sets of
	// metric that contain every dimension in partial, up to maxScan sets.
	ListDimensionSets(ctx context.Context, namespace, metric string, partial []Dimension, maxScan int) ([][]Dimension, error)

	// Sources names the metrics that carry CPU, memory and disk utilization.
	Sources() MetricSources

	// ConsoleLink is the deep link to an instance in the provider console.
	ConsoleLink(region, instanceID string) string
}

type InstanceFilter struct {
	TagKey       string
	TagValue     string
	OnlyRunning  bool
	MaxInstances int
}

// HasTag reports whether the tag filter applies; both key and value are required.
func (f InstanceFilter) HasTag() bool {
	return f.TagKey != "" && f.TagValue != ""
}

type Dimension struct {
	Name  string
	Value string
}

type Statistic string

const (
	StatAverage Statistic = "Average"
	StatMaximum Statistic = "Maximum"
	StatMinimum Statistic = "Minimum"
)

type MetricQuery struct {
	Namespace  string
	MetricName string
	Dimensions []Dimension
	Start      time.Time
	End        time.Time
	Period     time.Duration
	Statistic  Statistic
}

// Datapoint is one backend value. Valid is false when the backend returned a
// bucket without a value for the requested statistic.
type Datapoint struct {
	Timestamp time.Time
	Value     float64
	Valid     bool
}

// MetricSource describes where one utilization metric lives.
type MetricSource struct {
	Namespace string
	Name      string
	// InstanceDimension is the dimension that carries the instance id.
	InstanceDimension string
	// Fixed dimensions are added to every query and discovery filter.
	Fixed []Dimension
	// Discover means the metric is published under several dimension sets per
	// instance (per device, per mount point) that must be looked up first.
	Discover bool
	// Scale converts the backend value to percent.
	Scale float64
}

// Dimensions returns the dimensions identifying instanceID for this source.
func (s MetricSource) Dimensions(instanceID string) []Dimension {
	dims := make([]Dimension, 0, len(s.Fixed)+1)
	dims = append(dims, Dimension{Name: s.InstanceDimension, Value: instanceID})
	return append(dims, s.Fixed...)
}

type MetricSources struct {
	CPU    MetricSource
	Memory MetricSource
	Disk   MetricSource
}

func (s MetricSources) For(kind models.MetricKind) MetricSource {
	switch kind {
	case models.Memory:
		return s.Memory
	case models.Disk:
		return s.Disk
	}
	return s.CPU
}

// containsAll reports whether every dimension of want appears in have.
func containsAll(have, want []Dimension) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h.Name == w.Name && h.Value == w.Value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
