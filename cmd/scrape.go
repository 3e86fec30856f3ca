package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"mspro-labs/coffee-prices/internal/browser"
	"mspro-labs/coffee-prices/internal/config"
	"mspro-labs/coffee-prices/internal/pipeline"
	"mspro-labs/coffee-prices/internal/publisher"
)

var (
	printTable bool
	schedule   bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run the scraper once and write the static prices artifact",
	Long: `Downloads today's report, extracts the prices and overwrites the static
artifact (OUTPUT_PATH, default public/prices.json). With --schedule it keeps
running and scrapes on the configured cron expression.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrape(cmd)
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&printTable, "print", false, "print the published prices as a table")
	scrapeCmd.Flags().BoolVar(&schedule, "schedule", false, "stay running and scrape on the configured schedule")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command) error {
	appCfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	siteCfg, err := config.LoadSiteConfig(appCfg.ConfigPath)
	if err != nil {
		return err
	}
	open, err := browser.NewOpener(appCfg.Engine, siteCfg, logger)
	if err != nil {
		return err
	}
	p := pipeline.New(siteCfg, open, logger)

	scrapeOnce := func(ctx context.Context) error {
		// Leftovers from an interrupted run.
		if err := p.Watcher.Prepare(); err != nil {
			return err
		}
		report, err := p.Run(ctx)
		if err != nil {
			return err
		}
		if err := (publisher.FileSink{Path: appCfg.OutputPath}).Publish(ctx, report); err != nil {
			return err
		}
		logger.Info("prices published", "path", appCfg.OutputPath, "last_updated", report.LastUpdated)
		if printTable {
			renderReport(cmd.OutOrStdout(), report)
		}
		return nil
	}

	if !schedule {
		return scrapeOnce(cmd.Context())
	}
	return runScheduled(cmd.Context(), siteCfg.Schedule, logger, scrapeOnce)
}

// runScheduled blocks until SIGINT/SIGTERM. A failed run is logged and the
// previous artifact stays in place.
func runScheduled(ctx context.Context, sched config.ScheduleConfig, logger *slog.Logger, job func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New(
		cron.WithLocation(sched.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(sched.Cron, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := job(runCtx); err != nil {
			logger.Error("scheduled scrape failed", "err", err)
		}
	})
	if err != nil {
		return err
	}

	logger.Info("scheduler started", "cron", sched.Cron, "timezone", sched.Location().String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
	return nil
}
