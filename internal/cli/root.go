package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/app"
	"github.com/YumeNoTenshi/utilwatch/internal/config"
	"github.com/YumeNoTenshi/utilwatch/internal/logging"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "utilwatch",
		Short:         "utilwatch: compute utilization checker\n Flags instances above CPU/memory/disk thresholds and reports them to Teams and email.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&opts.configFile, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(runCmd(opts))
	cmd.AddCommand(serveCmd(opts))
	cmd.AddCommand(previewCmd(opts))
	return cmd
}

// Execute executes the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	v, err := config.New(o.configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.logLevel != "" {
		v.Set("LOG_LEVEL", o.logLevel)
	}
	cfg := config.Load(v)

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func (o *rootOptions) app(ctx context.Context) (*app.App, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("init failed", zap.Error(err))
		return nil, err
	}
	return a, nil
}
