package browser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"mspro-labs/coffee-prices/internal/config"
)

// networkQuiet is how long the page must stay free of requests and DOM
// changes before it counts as settled.
const networkQuiet = 500 * time.Millisecond

type rodDriver struct {
	cfg      *config.SiteConfig
	logger   *slog.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser

	closeOnce sync.Once
	closeErr  error
}

func launchRod(cfg *config.SiteConfig, logger *slog.Logger) (*rodDriver, error) {
	logger.Info("launching headless browser")
	// Sandboxing is unavailable in most containers and CI runners.
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-setuid-sandbox")
	u, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, acquisitionErr("launch", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, acquisitionErr("connect", err)
	}
	return &rodDriver{cfg: cfg, logger: logger, launcher: l, browser: b}, nil
}

func (d *rodDriver) TriggerDownload(ctx context.Context, dir string) (Link, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Link{}, acquisitionErr("resolve download dir", err)
	}
	err = proto.BrowserSetDownloadBehavior{
		Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath: abs,
	}.Call(d.browser)
	if err != nil {
		return Link{}, acquisitionErr("set download behavior", err)
	}

	page, err := stealth.Page(d.browser.Context(ctx))
	if err != nil {
		return Link{}, acquisitionErr("open page", err)
	}
	defer page.Close()

	d.logger.Info("navigating", "url", d.cfg.ReportURL)
	nav := page.Timeout(d.cfg.NavigationTimeout)
	if err := nav.Navigate(d.cfg.ReportURL); err != nil {
		return Link{}, acquisitionErr("navigate", err)
	}
	if err := nav.WaitStable(networkQuiet); err != nil {
		return Link{}, acquisitionErr("wait for network", err)
	}

	el, err := page.Timeout(d.cfg.SelectorTimeout).Element(d.cfg.LinkSelector)
	if err != nil {
		return Link{}, acquisitionErr(fmt.Sprintf("wait for %s", d.cfg.LinkSelector), err)
	}

	link, err := resolveReportLink(page.HTML, d.cfg.LinkSelector)
	if err != nil {
		return Link{}, err
	}

	d.logger.Info("clicking report link", "label", link.Label)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return Link{}, acquisitionErr("click", err)
	}
	return link, nil
}

func (d *rodDriver) Close() error {
	d.closeOnce.Do(func() {
		d.logger.Info("closing browser")
		d.closeErr = d.browser.Close()
		d.launcher.Kill()
		d.launcher.Cleanup()
	})
	return d.closeErr
}
