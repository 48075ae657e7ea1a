package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tenderwatch/internal/app"
	"tenderwatch/internal/config"
	"tenderwatch/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tenderwatch",
		Short:         "Monitors procurement pages for ESG and credit-rating tenders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var unfiltered bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl all sources once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level)

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.RunOnce(ctx, unfiltered)
		},
	}

	cmd.Flags().BoolVar(&unfiltered, "unfiltered", false, "skip date filtering for this run")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run crawls on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level)

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			logger.Info("scheduler starting", "cron", cfg.Scheduler.CronExpression)
			return application.Serve(ctx)
		},
	}
}
