// Package pipeline runs one scrape: download the board's daily report, read
// its text, locate the prices and hand the report to a sink.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"mspro-labs/coffee-prices/internal/browser"
	"mspro-labs/coffee-prices/internal/config"
	"mspro-labs/coffee-prices/internal/download"
	"mspro-labs/coffee-prices/internal/locator"
	"mspro-labs/coffee-prices/internal/models"
	"mspro-labs/coffee-prices/internal/pdftext"
	"mspro-labs/coffee-prices/internal/publisher"
)

// Pipeline holds the collaborators of a run. It keeps no state between runs.
type Pipeline struct {
	Open      browser.Opener
	Watcher   *download.Watcher
	Extractor pdftext.Extractor
	Locator   *locator.Locator
	Source    string
	Logger    *slog.Logger
}

// New wires a Pipeline from site config.
func New(cfg *config.SiteConfig, open browser.Opener, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Open: open,
		Watcher: &download.Watcher{
			Dir:         cfg.Download.Dir,
			Extension:   cfg.Download.Extension,
			Interval:    cfg.Download.PollInterval,
			MaxAttempts: cfg.Download.MaxAttempts,
			Settle:      cfg.Download.SettleDelay,
			Logger:      logger.With("component", "download"),
		},
		Extractor: pdftext.PDF{},
		Locator: locator.New(locator.Thresholds{
			MinTokens:       cfg.Locator.MinTokens,
			FirstTokenFloor: cfg.Locator.FirstTokenFloor,
		}),
		Source: cfg.Source,
		Logger: logger.With("component", "pipeline"),
	}
}

// RunTo runs the pipeline and publishes the report to sink. Nothing is
// published when the run fails.
func (p *Pipeline) RunTo(ctx context.Context, sink publisher.Sink) error {
	report, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if err := sink.Publish(ctx, report); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	return nil
}

// Run produces one report. Acquisition and extraction failures are returned;
// a document without a recognisable price row or date still yields a
// complete report carrying "N/A" and "Unknown".
func (p *Pipeline) Run(ctx context.Context) (models.PriceReport, error) {
	log := p.Logger.With("run_id", uuid.NewString())
	log.Info("starting run")

	data, err := p.fetchDocument(ctx, log)
	if err != nil {
		log.Error("run failed", "err", err)
		return models.PriceReport{}, err
	}
	log.Info("document downloaded", "bytes", len(data))

	text, err := p.Extractor.Extract(data)
	if err != nil {
		log.Error("run failed", "err", err)
		return models.PriceReport{}, err
	}

	ex := p.Locator.Locate(text)
	if len(ex.Tokens) == 0 {
		log.Warn("no price row found, publishing N/A prices")
	}
	if ex.Date == models.UnknownDate {
		log.Warn("report date not found")
	}

	report := models.PriceReport{
		Prices:      locator.BuildQuotes(ex.Tokens),
		LastUpdated: ex.Date,
		Source:      p.Source,
	}
	log.Info("run finished", "last_updated", report.LastUpdated, "tokens", len(ex.Tokens))
	return report, nil
}

// fetchDocument owns the browser and the run's scratch directory: both are
// released before this returns, whatever step failed.
func (p *Pipeline) fetchDocument(ctx context.Context, log *slog.Logger) ([]byte, error) {
	run, err := p.Watcher.Scratch()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := run.Discard(); err != nil {
			log.Warn("failed to remove run dir", "dir", run.Dir, "err", err)
		}
	}()

	drv, err := p.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := drv.Close(); err != nil {
			log.Warn("browser close failed", "err", err)
		}
	}()

	link, err := drv.TriggerDownload(ctx, run.Dir)
	if err != nil {
		return nil, err
	}
	log.Info("report link clicked", "label", link.Label, "href", link.Href)

	log.Info("waiting for download", "dir", run.Dir)
	path, err := run.Wait(ctx)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
