package browser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"mspro-labs/coffee-prices/internal/config"
)

type chromedpDriver struct {
	cfg    *config.SiteConfig
	logger *slog.Logger
	ctx    context.Context

	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

func launchChromedp(parent context.Context, cfg *config.SiteConfig, logger *slog.Logger) (*chromedpDriver, error) {
	logger.Info("launching headless browser")
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)

	// The browser must outlive per-step timeouts, so it is rooted in a
	// context that only Close cancels.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(parent), allocOpts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser.
	if err := chromedp.Run(ctx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, acquisitionErr("launch", err)
	}
	return &chromedpDriver{cfg: cfg, logger: logger, ctx: ctx, cancelCtx: cancelCtx, cancelAlloc: cancelAlloc}, nil
}

func (d *chromedpDriver) TriggerDownload(ctx context.Context, dir string) (Link, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Link{}, acquisitionErr("resolve download dir", err)
	}

	// Stop waiting when the caller gives up.
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err = chromedp.Run(runCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(abs),
	)
	if err != nil {
		return Link{}, acquisitionErr("set download behavior", err)
	}

	d.logger.Info("navigating", "url", d.cfg.ReportURL)
	if err := d.runWithTimeout(runCtx, d.cfg.NavigationTimeout, navigateUntilIdle(d.cfg.ReportURL)); err != nil {
		return Link{}, acquisitionErr("navigate", err)
	}

	if err := d.runWithTimeout(runCtx, d.cfg.SelectorTimeout,
		chromedp.WaitVisible(d.cfg.LinkSelector, chromedp.ByQuery),
	); err != nil {
		return Link{}, acquisitionErr(fmt.Sprintf("wait for %s", d.cfg.LinkSelector), err)
	}

	link, err := resolveReportLink(func() (string, error) {
		var html string
		err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
		return html, err
	}, d.cfg.LinkSelector)
	if err != nil {
		return Link{}, err
	}

	d.logger.Info("clicking report link", "label", link.Label)
	if err := chromedp.Run(runCtx, chromedp.Click(d.cfg.LinkSelector, chromedp.ByQuery)); err != nil {
		return Link{}, acquisitionErr("click", err)
	}
	return link, nil
}

// navigateUntilIdle navigates and blocks until the new document reports the
// networkIdle lifecycle event.
func navigateUntilIdle(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		idle := make(chan cdp.LoaderID, 16)
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
				select {
				case idle <- e.LoaderID:
				default:
				}
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}
		_, loaderID, errText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigation failed: %s", errText)
		}

		return waitForLoader(ctx, idle, loaderID)
	}
}

// waitForLoader consumes idle notifications until one for loaderID arrives.
// Notifications for earlier documents, such as the initial blank page, are
// skipped.
func waitForLoader(ctx context.Context, idle <-chan cdp.LoaderID, loaderID cdp.LoaderID) error {
	for {
		select {
		case id := <-idle:
			if id == loaderID {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *chromedpDriver) runWithTimeout(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return chromedp.Run(ctx, actions...)
}

func (d *chromedpDriver) Close() error {
	d.closeOnce.Do(func() {
		d.logger.Info("closing browser")
		d.cancelCtx()
		d.cancelAlloc()
	})
	return nil
}
