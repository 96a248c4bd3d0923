package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deusflow/rundown/internal/app"
	"github.com/deusflow/rundown/internal/cache"
	"github.com/deusflow/rundown/internal/config"
	"github.com/deusflow/rundown/internal/logger"
	"github.com/deusflow/rundown/internal/metrics"
	"github.com/deusflow/rundown/internal/monitor"
)

func main() {
	_ = godotenv.Load()
	logger.Init()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rundown",
		Short:         "Collect, summarize and email the daily news rundown",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd(), newFetchCmd(), newScheduleCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one delivery: collect news and email every validated subscriber",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.Run(ctx)
			return err
		},
	}
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Collect and summarize news, print the digest as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Fetch(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
}

func newScheduleCmd() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the delivery on the SCHEDULE cron expression until stopped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateDelivery(); err != nil {
				return err
			}

			if cfg.EnableHTTPMonitoring {
				go func() {
					if err := monitor.Serve(ctx, cfg.MonitoringPort, metrics.Global); err != nil {
						logger.Error("monitoring server error", err)
					}
				}()
			}

			summaries := cache.New(time.Hour)
			defer summaries.Stop()

			job := func() {
				a, err := app.Build(ctx, cfg, true, summaries)
				if err != nil {
					logger.Error("failed to build app", err)
					metrics.Global.SetError(err.Error())
					return
				}
				defer a.Close()
				_, _ = a.Run(ctx)
			}

			c, trigger, err := newScheduler(cfg.Schedule, job)
			if err != nil {
				return err
			}
			c.Start()
			logger.Info("scheduler started", "schedule", cfg.Schedule)

			if runNow {
				go trigger()
			}

			<-ctx.Done()
			logger.Info("stopping scheduler")
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "now", false, "Also run once immediately")
	return cmd
}

func buildApp(ctx context.Context, withDelivery bool) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.EnableHTTPMonitoring {
		go func() {
			if err := monitor.Serve(ctx, cfg.MonitoringPort, metrics.Global); err != nil {
				logger.Error("monitoring server error", err)
			}
		}()
	}
	return app.Build(ctx, cfg, withDelivery, nil)
}
