package cloud

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	compute "google.golang.org/api/compute/v1"
	monitoring "google.golang.org/api/monitoring/v3"
	"google.golang.org/api/option"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

// GCE instances are identified by name; Cloud Monitoring exposes the name of a
// gce_instance through its system metadata.
const gcpInstanceDimension = "metadata.system_labels.name"

var errStopPaging = errors.New("stop paging")

// GCE label keys: lowercase letter first, then lowercase letters, digits,
// underscores and dashes.
var labelKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)

type GCPProvider struct {
	computeService    *compute.Service
	monitoringService *monitoring.Service
	projectID         string
	zone              string
	now               func() time.Time
}

func NewGCPProvider(ctx context.Context, projectID, zone string, opts ...option.ClientOption) (*GCPProvider, error) {
	if projectID == "" || zone == "" {
		return nil, fmt.Errorf("gcp provider needs a project and a zone")
	}

	computeService, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("compute service: %w", err)
	}

	monitoringService, err := monitoring.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("monitoring service: %w", err)
	}

	return &GCPProvider{
		computeService:    computeService,
		monitoringService: monitoringService,
		projectID:         projectID,
		zone:              zone,
		now:               time.Now,
	}, nil
}

func (g *GCPProvider) Name() string    { return "gcp" }
func (g *GCPProvider) Service() string { return "GCE" }

func (g *GCPProvider) Account(ctx context.Context) string {
	return "GCP " + g.projectID
}

func (g *GCPProvider) ListInstances(ctx context.Context, filter InstanceFilter) ([]models.Instance, error) {
	call := g.computeService.Instances.List(g.projectID, g.zone)

	var exprs []string
	if filter.OnlyRunning {
		exprs = append(exprs, `(status = "RUNNING")`)
	}
	if filter.HasTag() {
		if !labelKeyPattern.MatchString(filter.TagKey) {
			return nil, fmt.Errorf("invalid label key %q", filter.TagKey)
		}
		exprs = append(exprs, fmt.Sprintf(`(labels.%s = %s)`, filter.TagKey, strconv.Quote(filter.TagValue)))
	}
	if len(exprs) > 0 {
		call = call.Filter(strings.Join(exprs, " AND "))
	}

	var servers []models.Instance
	err := call.Pages(ctx, func(page *compute.InstanceList) error {
		for _, instance := range page.Items {
			servers = append(servers, models.Instance{
				ID:     instance.Name,
				Name:   instance.Labels["name"],
				Region: g.zone,
				Zone:   lastSegment(instance.Zone),
				State:  instance.Status,
				Type:   lastSegment(instance.MachineType),
				Tags:   instance.Labels,
			})
			if filter.MaxInstances > 0 && len(servers) >= filter.MaxInstances {
				return errStopPaging
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	return servers, nil
}

func (g *GCPProvider) QueryMetric(ctx context.Context, q MetricQuery) ([]Datapoint, error) {
	period := int64(q.Period / time.Second)
	if period <= 0 {
		period = 60
	}

	call := g.monitoringService.Projects.TimeSeries.List("projects/"+g.projectID).
		Filter(g.filter(q.Namespace, q.MetricName, q.Dimensions)).
		IntervalStartTime(q.Start.UTC().Format(time.RFC3339)).
		IntervalEndTime(q.End.UTC().Format(time.RFC3339)).
		AggregationAlignmentPeriod(fmt.Sprintf("%ds", period)).
		AggregationPerSeriesAligner(aligner(q.Statistic))

	var points []Datapoint
	err := call.Pages(ctx, func(resp *monitoring.ListTimeSeriesResponse) error {
		for _, series := range resp.TimeSeries {
			for _, point := range series.Points {
				if point.Interval == nil {
					continue
				}
				ts, err := time.Parse(time.RFC3339Nano, point.Interval.EndTime)
				if err != nil {
					continue
				}
				p := Datapoint{Timestamp: ts}
				if point.Value != nil {
					switch {
					case point.Value.DoubleValue != nil:
						p.Value, p.Valid = *point.Value.DoubleValue, true
					case point.Value.Int64Value != nil:
						p.Value, p.Valid = float64(*point.Value.Int64Value), true
					}
				}
				points = append(points, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list time series %s/%s: %w", q.Namespace, q.MetricName, err)
	}

	return points, nil
}

func (g *GCPProvider) ListDimensionSets(ctx context.Context, namespace, metric string, partial []Dimension, maxScan int) ([][]Dimension, error) {
	end := g.now().UTC()
	start := end.Add(-time.Hour)

	call := g.monitoringService.Projects.TimeSeries.List("projects/"+g.projectID).
		Filter(g.filter(namespace, metric, partial)).
		IntervalStartTime(start.Format(time.RFC3339)).
		IntervalEndTime(end.Format(time.RFC3339)).
		View("HEADERS")

	seen := make(map[string]bool)
	var sets [][]Dimension
	err := call.Pages(ctx, func(resp *monitoring.ListTimeSeriesResponse) error {
		for _, series := range resp.TimeSeries {
			dims := append([]Dimension(nil), partial...)
			if series.Metric != nil {
				keys := make([]string, 0, len(series.Metric.Labels))
				for k := range series.Metric.Labels {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					d := Dimension{Name: "metric.labels." + k, Value: series.Metric.Labels[k]}
					if !containsAll(dims, []Dimension{d}) {
						dims = append(dims, d)
					}
				}
			}
			key := dimensionKey(dims)
			if seen[key] {
				continue
			}
			seen[key] = true
			sets = append(sets, dims)
			if maxScan > 0 && len(sets) >= maxScan {
				return errStopPaging
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return nil, fmt.Errorf("list time series headers %s/%s: %w", namespace, metric, err)
	}
	return sets, nil
}

func (g *GCPProvider) Sources() MetricSources {
	used := []Dimension{{Name: "metric.labels.state", Value: "used"}}
	return MetricSources{
		CPU: MetricSource{
			Namespace:         "compute.googleapis.com/instance",
			Name:              "cpu/utilization",
			InstanceDimension: gcpInstanceDimension,
			Scale:             100,
		},
		Memory: MetricSource{
			Namespace:         "agent.googleapis.com/memory",
			Name:              "percent_used",
			InstanceDimension: gcpInstanceDimension,
			Fixed:             used,
			Discover:          true,
			Scale:             1,
		},
		Disk: MetricSource{
			Namespace:         "agent.googleapis.com/disk",
			Name:              "percent_used",
			InstanceDimension: gcpInstanceDimension,
			Fixed:             used,
			Discover:          true,
			Scale:             1,
		},
	}
}

func (g *GCPProvider) ConsoleLink(zone, instanceName string) string {
	return fmt.Sprintf("https://console.cloud.google.com/compute/instancesDetail/zones/%s/instances/%s?project=%s", zone, instanceName, g.projectID)
}

func (g *GCPProvider) filter(namespace, metric string, dims []Dimension) string {
	var b strings.Builder
	fmt.Fprintf(&b, `metric.type = %s AND resource.type = "gce_instance"`, strconv.Quote(namespace+"/"+metric))
	for _, d := range dims {
		fmt.Fprintf(&b, ` AND %s = %s`, d.Name, strconv.Quote(d.Value))
	}
	return b.String()
}

func aligner(stat Statistic) string {
	switch stat {
	case StatMaximum:
		return "ALIGN_MAX"
	case StatMinimum:
		return "ALIGN_MIN"
	default:
		return "ALIGN_MEAN"
	}
}

func dimensionKey(dims []Dimension) string {
	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		parts = append(parts, d.Name+"="+d.Value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func lastSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}
