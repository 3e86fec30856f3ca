// Package browser drives a headless Chrome to the board's market page and
// clicks the daily report link, which makes the site stream the PDF into a
// download directory.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mspro-labs/coffee-prices/internal/config"
)

// ErrAcquisition wraps every failure to launch, navigate or click.
var ErrAcquisition = errors.New("report acquisition failed")

// Driver is one launched browser.
type Driver interface {
	// TriggerDownload opens the report page, resolves the report link and
	// clicks it. The browser writes the file into dir.
	TriggerDownload(ctx context.Context, dir string) (Link, error)
	// Close terminates the browser process. Calls after the first are no-ops.
	Close() error
}

// Opener launches a Driver. The pipeline takes one so tests can swap the
// browser out.
type Opener func(ctx context.Context) (Driver, error)

// NewOpener returns an Opener for the named engine.
func NewOpener(engine string, cfg *config.SiteConfig, logger *slog.Logger) (Opener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch engine {
	case "", "rod":
		return func(ctx context.Context) (Driver, error) {
			return launchRod(cfg, logger.With("engine", "rod"))
		}, nil
	case "chromedp":
		return func(ctx context.Context) (Driver, error) {
			return launchChromedp(ctx, cfg, logger.With("engine", "chromedp"))
		}, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", engine)
	}
}

// Link describes the report anchor found on the market page.
type Link struct {
	Href  string
	Label string
}

// findReportLink locates the first anchor matching selector in html.
func findReportLink(html, selector string) (Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Link{}, err
	}
	a := doc.Find(selector).First()
	if a.Length() == 0 {
		return Link{}, fmt.Errorf("no element matches %s", selector)
	}
	href, _ := a.Attr("href")
	return Link{
		Href:  href,
		Label: strings.Join(strings.Fields(a.Text()), " "),
	}, nil
}

// resolveReportLink reads the rendered page and resolves the anchor the
// driver is about to click. A page without it is an acquisition failure.
func resolveReportLink(html func() (string, error), selector string) (Link, error) {
	doc, err := html()
	if err != nil {
		return Link{}, acquisitionErr("read page", err)
	}
	link, err := findReportLink(doc, selector)
	if err != nil {
		return Link{}, acquisitionErr("resolve report link", err)
	}
	return link, nil
}

func acquisitionErr(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrAcquisition, step, err)
}
