package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/api"
	"github.com/YumeNoTenshi/utilwatch/internal/app"
	"github.com/YumeNoTenshi/utilwatch/internal/check"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	var (
		listen   string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the check on an interval and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.app(ctx)
			if err != nil {
				return err
			}
			defer a.Log.Sync()

			if listen == "" {
				listen = a.Config.ListenAddr
			}
			if interval <= 0 {
				interval = a.Config.CheckInterval
			}

			scheduler := check.NewScheduler(check.SchedulerConfig{Interval: interval, RunOnStart: true}, a.Module, a.Log)
			server := api.NewServer(scheduler, a.Module, a.Collector.Registry(), a.Config.APIKey, a.Log)
			httpServer := &http.Server{
				Addr:              listen,
				Handler:           server.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.Log.Info("listening", zap.String("addr", listen), zap.Duration("interval", interval))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
			if a.Module.Enabled() {
				go scheduler.Start(ctx)
			} else {
				a.Log.Info("compute module disabled, scheduler not started", zap.String("reason", app.SkippedComputeDisabled))
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides LISTEN_ADDR)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "check interval (overrides CHECK_INTERVAL)")
	return cmd
}
