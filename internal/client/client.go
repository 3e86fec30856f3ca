// Package client is the consumer side: it reads prices from the static
// artifact, then the live endpoint, then a built-in snapshot.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"mspro-labs/coffee-prices/internal/models"
)

var errNoPrices = errors.New("report has no prices")

// Client reads PriceReports the way a dashboard does.
type Client struct {
	// StaticURL is an http(s) URL or a local path to the published artifact.
	StaticURL string
	LiveURL   string
	Logger    *slog.Logger

	http *resty.Client
}

// New returns a Client. Either source may be empty to skip that tier.
func New(staticURL, liveURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	http := resty.New()
	http.SetHeader("Accept", "application/json")
	// The live endpoint drives a browser per request.
	http.SetTimeout(3 * time.Minute)

	return &Client{
		StaticURL: staticURL,
		LiveURL:   liveURL,
		Logger:    logger.With("component", "client"),
		http:      http,
	}
}

// FetchPrices never fails. A source counts only when it returns a report
// with at least one price; otherwise the next one is tried and the
// fallback snapshot is the last resort.
func (c *Client) FetchPrices(ctx context.Context) models.PriceReport {
	if c.StaticURL != "" {
		report, err := c.fetchStatic(ctx)
		if err == nil {
			return report
		}
		c.Logger.Warn("static prices unavailable", "source", c.StaticURL, "err", err)
	}

	if c.LiveURL != "" {
		report, err := c.fetchURL(ctx, c.LiveURL)
		if err == nil {
			return report
		}
		c.Logger.Warn("live prices unavailable", "source", c.LiveURL, "err", err)
	}

	c.Logger.Warn("serving fallback prices")
	return models.FallbackReport()
}

func (c *Client) fetchStatic(ctx context.Context) (models.PriceReport, error) {
	if isURL(c.StaticURL) {
		return c.fetchURL(ctx, c.StaticURL)
	}
	data, err := os.ReadFile(c.StaticURL)
	if err != nil {
		return models.PriceReport{}, err
	}
	return decode(data)
}

func (c *Client) fetchURL(ctx context.Context, url string) (models.PriceReport, error) {
	res, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return models.PriceReport{}, err
	}
	if res.IsError() {
		return models.PriceReport{}, fmt.Errorf("unexpected status %s", res.Status())
	}
	return decode(res.Body())
}

func decode(data []byte) (models.PriceReport, error) {
	var report models.PriceReport
	if err := json.Unmarshal(data, &report); err != nil {
		return models.PriceReport{}, fmt.Errorf("failed to decode report: %w", err)
	}
	if len(report.Prices) == 0 {
		return models.PriceReport{}, errNoPrices
	}
	return report, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
