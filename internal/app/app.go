// Package app wires configuration into a ready to run compute check.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/check"
	"github.com/YumeNoTenshi/utilwatch/internal/config"
	"github.com/YumeNoTenshi/utilwatch/internal/metrics"
	"github.com/YumeNoTenshi/utilwatch/internal/models"
	"github.com/YumeNoTenshi/utilwatch/internal/notify"
	"github.com/YumeNoTenshi/utilwatch/pkg/cloud"
)

// PushJob is the Pushgateway job name runs are pushed under.
const PushJob = "utilwatch"

const SkippedComputeDisabled = "ENABLE_COMPUTE=false"

type App struct {
	Config    config.Config
	Provider  cloud.Provider
	Compute   *check.Compute
	Module    *Module
	Collector *metrics.Collector
	Log       *zap.Logger
}

type computeCheck interface {
	check.Checker
	Preview(ctx context.Context) (check.Evaluation, notify.Rendered, error)
}

// Module is the compute check behind the ENABLE_COMPUTE gate. The scheduler,
// the HTTP API and the preview command all go through it.
type Module struct {
	enabled bool
	check   computeCheck
	log     *zap.Logger
}

func NewModule(enabled bool, c computeCheck, logger *zap.Logger) *Module {
	return &Module{enabled: enabled, check: c, log: logger}
}

func (m *Module) Enabled() bool { return m.enabled }

// Run returns a skipped summary without touching the check when the module
// is off.
func (m *Module) Run(ctx context.Context) (models.Summary, error) {
	if !m.enabled {
		m.log.Info("compute module disabled", zap.String("reason", SkippedComputeDisabled))
		return models.Summary{OK: true, Skipped: SkippedComputeDisabled}, nil
	}
	return m.check.Run(ctx)
}

func (m *Module) Preview(ctx context.Context) (check.Evaluation, notify.Rendered, error) {
	if !m.enabled {
		return check.Evaluation{}, notify.Rendered{}, fmt.Errorf("compute module: %w (%s)", check.ErrDisabled, SkippedComputeDisabled)
	}
	return m.check.Preview(ctx)
}

// Report is the application level result of one invocation.
type Report struct {
	OK      bool                      `json:"ok"`
	Modules map[string]models.Summary `json:"modules"`
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mailer, err := NewMailTransport(ctx, cfg, provider)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	chat := &notify.ChatSink{Endpoint: cfg.TeamsWebhook, Transport: notify.NewTeamsWebhook()}
	email := &notify.EmailSink{
		Enabled:   cfg.Mail.Enabled,
		From:      cfg.Mail.From,
		To:        cfg.Mail.To,
		CC:        cfg.Mail.CC,
		BCC:       cfg.Mail.BCC,
		Transport: mailer,
	}
	dispatcher := notify.NewDispatcher(chat, email, collector, logger)
	compute := check.NewCompute(check.OptionsFromConfig(cfg), provider, dispatcher, collector, logger)

	return &App{
		Config:    cfg,
		Provider:  provider,
		Compute:   compute,
		Module:    NewModule(cfg.EnableCompute, compute, logger),
		Collector: collector,
		Log:       logger,
	}, nil
}

func NewProvider(ctx context.Context, cfg config.Config) (cloud.Provider, error) {
	switch cfg.Provider {
	case "", "aws":
		p, err := cloud.NewAWSProvider(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "gcp":
		if cfg.GCPProject == "" {
			return nil, errors.New("GCP_PROJECT is required for the gcp provider")
		}
		p, err := cloud.NewGCPProvider(ctx, cfg.GCPProject, cfg.GCPZone)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown CLOUD_PROVIDER %q", cfg.Provider)
	}
}

// NewMailTransport returns nil when the mail report is disabled.
func NewMailTransport(ctx context.Context, cfg config.Config, provider cloud.Provider) (notify.MailTransport, error) {
	if !cfg.Mail.Enabled {
		return nil, nil
	}
	switch cfg.Mail.Transport {
	case "", "ses":
		awsCfg, err := awsConfig(ctx, cfg, provider)
		if err != nil {
			return nil, err
		}
		return notify.NewSESMailer(awsCfg), nil
	case "smtp":
		return notify.NewSMTPMailer(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.SMTPUsername, cfg.Mail.SMTPPassword), nil
	default:
		return nil, fmt.Errorf("unknown MAIL_TRANSPORT %q", cfg.Mail.Transport)
	}
}

func awsConfig(ctx context.Context, cfg config.Config, provider cloud.Provider) (aws.Config, error) {
	if p, ok := provider.(*cloud.AWSProvider); ok {
		return p.Config(), nil
	}
	c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config for ses: %w", err)
	}
	return c, nil
}

// Run executes every enabled module once.
func (a *App) Run(ctx context.Context) (Report, error) {
	report := Report{OK: true, Modules: map[string]models.Summary{}}
	if !a.Config.EnableCompute {
		a.Log.Info("compute module disabled", zap.String("reason", SkippedComputeDisabled))
		return report, nil
	}

	sum, err := a.Compute.Run(ctx)
	report.Modules["compute"] = sum
	report.OK = sum.OK && err == nil
	return report, err
}

// Push sends the collector to the configured Pushgateway, if any.
func (a *App) Push(ctx context.Context) {
	if a.Config.PushgatewayURL == "" {
		return
	}
	if err := a.Collector.Push(ctx, a.Config.PushgatewayURL, PushJob); err != nil {
		a.Log.Warn("pushgateway push failed", zap.String("url", a.Config.PushgatewayURL), zap.Error(err))
	}
}
