package check

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/config"
	"github.com/YumeNoTenshi/utilwatch/internal/inventory"
	"github.com/YumeNoTenshi/utilwatch/internal/metrics"
	"github.com/YumeNoTenshi/utilwatch/internal/models"
	"github.com/YumeNoTenshi/utilwatch/internal/notify"
	"github.com/YumeNoTenshi/utilwatch/internal/report"
	"github.com/YumeNoTenshi/utilwatch/internal/severity"
	"github.com/YumeNoTenshi/utilwatch/pkg/cloud"
)

const SkippedDisabled = "ENABLE_EC2_UTILIZATION=false"

// ErrDisabled is returned by gated callers when the check is switched off.
var ErrDisabled = errors.New("check disabled")

var agentNames = map[string]string{
	"aws": "CloudWatch Agent",
	"gcp": "Ops Agent",
}

type Options struct {
	Enabled     bool
	Window      time.Duration
	Period      time.Duration
	Thresholds  models.ThresholdSet
	Filter      cloud.InstanceFilter
	MaxScan     int
	RowsPerCard int
	LogSeries   bool
	MailSubject string
}

// OptionsFromConfig maps the run configuration to check options. Only running
// instances are ever listed.
func OptionsFromConfig(cfg config.Config) Options {
	opts := Options{
		Enabled:    cfg.EnableUtilization,
		Window:     cfg.Window,
		Period:     cfg.Period,
		Thresholds: cfg.Thresholds,
		Filter: cloud.InstanceFilter{
			TagKey:       cfg.TagKey,
			TagValue:     cfg.TagValue,
			OnlyRunning:  true,
			MaxInstances: cfg.MaxInstances,
		},
		MaxScan:     cfg.MaxDimensionScan,
		RowsPerCard: cfg.RowsPerCard,
		LogSeries:   cfg.LogSeries,
		MailSubject: cfg.Mail.Subject,
	}
	if opts.Window <= 0 {
		opts.Window = config.DefaultWindowMinutes * time.Minute
	}
	if opts.Period <= 0 {
		opts.Period = config.DefaultPeriodSeconds * time.Second
	}
	return opts
}

// Compute is the compute utilization check: inventory, metrics, severity,
// offender filter, rendering and dispatch for one provider. Run and Preview
// never overlap.
type Compute struct {
	mu sync.Mutex

	opts       Options
	provider   cloud.Provider
	inventory  *inventory.Fetcher
	metrics    *metrics.Fetcher
	dispatcher *notify.Dispatcher
	collector  *metrics.Collector
	log        *zap.Logger
	now        func() time.Time
}

func NewCompute(opts Options, provider cloud.Provider, dispatcher *notify.Dispatcher, collector *metrics.Collector, logger *zap.Logger) *Compute {
	logger = logger.With(zap.String("component", "compute"), zap.String("provider", provider.Name()))
	return &Compute{
		opts:      opts,
		provider:  provider,
		inventory: inventory.NewFetcher(provider, logger),
		metrics: metrics.NewFetcher(provider, metrics.FetcherConfig{
			Period:           opts.Period,
			Statistic:        cloud.StatAverage,
			MaxDimensionScan: opts.MaxScan,
		}, logger),
		dispatcher: dispatcher,
		collector:  collector,
		log:        logger,
		now:        time.Now,
	}
}

// Evaluation is the classified state of the inventory for one run.
type Evaluation struct {
	RunID     string
	Window    metrics.Window
	Samples   []models.InstanceSample
	Offenders []models.InstanceSample
}

// Evaluate samples every instance in turn and filters the offenders. It has
// no side effects beyond backend reads and logging.
func (c *Compute) Evaluate(ctx context.Context, runID string) Evaluation {
	w := metrics.NewWindow(c.now(), c.opts.Window)
	c.log.Info("metrics window",
		zap.String("run_id", runID),
		zap.Float64("window_min", c.opts.Window.Minutes()),
		zap.Duration("period", c.opts.Period),
		zap.Int("buckets", int(math.Ceil(c.opts.Window.Seconds()/c.opts.Period.Seconds()))),
		zap.Time("start", w.Start),
		zap.Time("end", w.End),
	)

	for _, kind := range c.opts.Thresholds.Crossed() {
		warn, alert := c.opts.Thresholds.For(kind)
		c.log.Warn("warn threshold above alert threshold",
			zap.String("metric", string(kind)),
			zap.Float64("warn", warn),
			zap.Float64("alert", alert),
		)
	}

	ev := Evaluation{RunID: runID, Window: w}
	for _, inst := range c.inventory.Fetch(ctx, c.opts.Filter) {
		ev.Samples = append(ev.Samples, c.sample(ctx, inst, w))
	}
	ev.Offenders = severity.Offenders(ev.Samples)
	return ev
}

func (c *Compute) sample(ctx context.Context, inst models.Instance, w metrics.Window) models.InstanceSample {
	s := models.InstanceSample{
		ID:         inst.ID,
		Name:       inst.Name,
		Thresholds: c.opts.Thresholds,
		Region:     inst.Region,
	}

	sources := c.provider.Sources()
	for _, kind := range models.MetricKinds {
		src := sources.For(kind)
		sets := c.metrics.Dimensions(ctx, src, inst.ID)
		reading := c.metrics.LatestAcross(ctx, src, sets, w)
		switch kind {
		case models.CPU:
			s.CPU = reading
		case models.Memory:
			s.Mem = reading
		case models.Disk:
			s.Disk = reading
		}
		if c.opts.LogSeries {
			c.logSeries(ctx, inst, kind, src, sets, w)
		}
	}
	return s
}

func (c *Compute) logSeries(ctx context.Context, inst models.Instance, kind models.MetricKind, src cloud.MetricSource, sets [][]cloud.Dimension, w metrics.Window) {
	points := slices.Collect(c.metrics.MergedSeries(ctx, src, sets, w))
	sum := metrics.Summarize(points)
	name := inst.Name
	if name == "" {
		name = "-"
	}
	c.log.Info("instance series",
		zap.String("instance_id", inst.ID),
		zap.String("name", name),
		zap.String("metric", string(kind)),
		zap.Int("dimension_sets", len(sets)),
		zap.Int("points", sum.Points),
		zap.Float64("mean", sum.Mean),
		zap.Float64("max", sum.Max),
		zap.String("series", metrics.FormatSeries(points)),
	)
}

// Render builds both report formats for the offenders of ev. With no
// offenders it returns the empty variants.
func (c *Compute) Render(ctx context.Context, ev Evaluation) (notify.Rendered, error) {
	account := c.provider.Account(ctx)
	table := report.BuildTable(ev.Offenders, c.provider.ConsoleLink)

	cards := report.CardRenderer{RowsPerCard: c.opts.RowsPerCard}.Render(account, table)
	email, err := report.EmailRenderer{
		Service: c.provider.Service(),
		Agent:   agentNames[c.provider.Name()],
	}.Render(account, table)
	if err != nil {
		return notify.Rendered{}, err
	}

	subject := c.opts.MailSubject
	if subject == "" {
		subject = fmt.Sprintf("%s Utilization Alerts - %d instance(s)", c.provider.Service(), len(ev.Offenders))
	}
	return notify.Rendered{Cards: cards, Subject: subject, Email: email}, nil
}

// Run performs one invocation. Backend failures degrade to missing data;
// only rendering and delivery failures are returned.
func (c *Compute) Run(ctx context.Context) (models.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	runID := uuid.NewString()
	if !c.opts.Enabled {
		c.log.Info("compute utilization check skipped", zap.String("reason", SkippedDisabled))
		sum := models.Summary{OK: true, RunID: runID, Skipped: SkippedDisabled}
		c.collector.ObserveRun(sum, 0, nil, c.now())
		return sum, nil
	}

	ev := c.Evaluate(ctx, runID)
	c.collector.BeginRun()
	for _, s := range ev.Samples {
		c.collector.ObserveSample(s, severity.Sample(s))
	}
	sum := models.Summary{OK: true, RunID: runID, Instances: len(ev.Samples)}

	switch {
	case len(ev.Samples) == 0:
		c.log.Info("no running instances found",
			zap.String("tag_key", c.opts.Filter.TagKey),
			zap.String("tag_value", c.opts.Filter.TagValue),
		)
		c.collector.ObserveRun(sum, 0, nil, c.now())
		return sum, nil
	case len(ev.Offenders) == 0:
		c.log.Info("no WARN/ALERT instances, skipping chat and email", zap.Int("instances", sum.Instances))
		c.collector.ObserveRun(sum, 0, nil, c.now())
		return sum, nil
	}

	rendered, err := c.Render(ctx, ev)
	if err != nil {
		sum.OK = false
		c.collector.ObserveRun(sum, len(ev.Offenders), err, c.now())
		return sum, err
	}

	delivery, err := c.dispatcher.Dispatch(ctx, rendered)
	sum.AlertsSent = len(ev.Offenders)
	sum.OK = err == nil
	c.log.Info("compute utilization check finished",
		zap.String("run_id", runID),
		zap.Int("instances", sum.Instances),
		zap.Int("offenders", len(ev.Offenders)),
		zap.Int("chat_pages", delivery.ChatPages),
		zap.Bool("chat_skipped", delivery.ChatSkipped),
		zap.Bool("email_skipped", delivery.EmailSkipped),
		zap.Error(err),
	)
	c.collector.ObserveRun(sum, len(ev.Offenders), err, c.now())
	return sum, err
}

// Preview evaluates and renders without dispatching. It leaves the run
// metrics untouched.
func (c *Compute) Preview(ctx context.Context) (Evaluation, notify.Rendered, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev := c.Evaluate(ctx, uuid.NewString())
	rendered, err := c.Render(ctx, ev)
	return ev, rendered, err
}
