package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

// Collector exposes the state of the last run. Instance gauges are reset at
// the start of every run; nothing is kept across runs. A nil *Collector is a
// valid no-op collector.
type Collector struct {
	registry *prometheus.Registry

	cpuUsageGauge    *prometheus.GaugeVec
	memoryUsageGauge *prometheus.GaugeVec
	diskUsageGauge   *prometheus.GaugeVec
	levelGauge       *prometheus.GaugeVec

	instancesGauge   prometheus.Gauge
	offendersGauge   prometheus.Gauge
	lastRunGauge     prometheus.Gauge
	runsCounter      *prometheus.CounterVec
	deliveredCounter *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}
	c.initPrometheusMetrics()
	return c
}

func (c *Collector) initPrometheusMetrics() {
	labels := []string{"instance_id", "name", "region"}

	c.cpuUsageGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "utilwatch_instance_cpu_percent",
			Help: "Latest CPU utilization of an instance",
		},
		labels,
	)

	c.memoryUsageGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "utilwatch_instance_memory_percent",
			Help: "Latest memory utilization of an instance, max across dimension sets",
		},
		labels,
	)

	c.diskUsageGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "utilwatch_instance_disk_percent",
			Help: "Latest disk utilization of an instance, max across dimension sets",
		},
		labels,
	)

	c.levelGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "utilwatch_instance_level",
			Help: "Combined severity of an instance (0 OK, 1 WARN, 2 ALERT)",
		},
		labels,
	)

	c.instancesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "utilwatch_instances",
		Help: "Instances evaluated by the last run",
	})

	c.offendersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "utilwatch_offenders",
		Help: "Instances at WARN or ALERT in the last run",
	})

	c.lastRunGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "utilwatch_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})

	c.runsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utilwatch_runs_total",
			Help: "Check runs by result",
		},
		[]string{"result"},
	)

	c.deliveredCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utilwatch_notifications_total",
			Help: "Notification attempts by sink and result",
		},
		[]string{"sink", "result"},
	)

	c.registry.MustRegister(
		c.cpuUsageGauge,
		c.memoryUsageGauge,
		c.diskUsageGauge,
		c.levelGauge,
		c.instancesGauge,
		c.offendersGauge,
		c.lastRunGauge,
		c.runsCounter,
		c.deliveredCounter,
	)
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// BeginRun drops the instance series of the previous run.
func (c *Collector) BeginRun() {
	if c == nil {
		return
	}
	c.cpuUsageGauge.Reset()
	c.memoryUsageGauge.Reset()
	c.diskUsageGauge.Reset()
	c.levelGauge.Reset()
}

func (c *Collector) ObserveSample(s models.InstanceSample, level models.Level) {
	if c == nil {
		return
	}
	labels := prometheus.Labels{"instance_id": s.ID, "name": s.Name, "region": s.Region}

	setReading(c.cpuUsageGauge, labels, s.CPU)
	setReading(c.memoryUsageGauge, labels, s.Mem)
	setReading(c.diskUsageGauge, labels, s.Disk)
	c.levelGauge.With(labels).Set(float64(level))
}

func setReading(g *prometheus.GaugeVec, labels prometheus.Labels, r models.Reading) {
	if r.Valid {
		g.With(labels).Set(r.Value)
	}
}

func (c *Collector) ObserveRun(summary models.Summary, offenders int, err error, at time.Time) {
	if c == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case summary.Skipped != "":
		result = "skipped"
	}
	c.runsCounter.WithLabelValues(result).Inc()
	c.instancesGauge.Set(float64(summary.Instances))
	c.offendersGauge.Set(float64(offenders))
	c.lastRunGauge.Set(float64(at.Unix()))
}

func (c *Collector) ObserveDelivery(sink, result string) {
	if c == nil {
		return
	}
	c.deliveredCounter.WithLabelValues(sink, result).Inc()
}

// Push sends the registry to a Pushgateway under job.
func (c *Collector) Push(ctx context.Context, url, job string) error {
	if c == nil || url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(c.registry).PushContext(ctx)
}
