package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mspro-labs/coffee-prices/internal/browser"
	"mspro-labs/coffee-prices/internal/config"
	"mspro-labs/coffee-prices/internal/download"
	"mspro-labs/coffee-prices/internal/models"
	"mspro-labs/coffee-prices/internal/pdftext"
	"mspro-labs/coffee-prices/internal/publisher"
)

const reportText = `Coffee Board of India
Raw Coffee Price (Karnataka) as on 12.05.2024
Chikmagalur 30000 30500 25000 25500 18000 18500 10000 10500
`

var regexpFetchedAt = regexp.MustCompile(`"fetchedAt": "[^"]*"`)

// fakeDriver stands in for the browser: a click "downloads" body into dir
// after delay.
type fakeDriver struct {
	body       string
	delay      time.Duration
	triggerErr error
	closes     int
	dir        string
}

func (d *fakeDriver) TriggerDownload(_ context.Context, dir string) (browser.Link, error) {
	d.dir = dir
	if d.triggerErr != nil {
		return browser.Link{}, d.triggerErr
	}
	if d.body == "" {
		return browser.Link{}, nil
	}
	time.Sleep(d.delay)
	err := os.WriteFile(filepath.Join(dir, "MarketInfo.pdf"), []byte(d.body), 0o644)
	return browser.Link{Href: "javascript:__doPostBack('lbnmarketinfo','')", Label: "Market Info"}, err
}

func (d *fakeDriver) Close() error {
	d.closes++
	return nil
}

// textExtractor treats the downloaded bytes as the document text.
type textExtractor struct{ err error }

func (e textExtractor) Extract(data []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return string(data), nil
}

type recordingSink struct {
	reports []models.PriceReport
}

func (s *recordingSink) Publish(_ context.Context, r models.PriceReport) error {
	s.reports = append(s.reports, r)
	return nil
}

func newTestPipeline(t *testing.T, drv *fakeDriver, ext pdftext.Extractor) *Pipeline {
	t.Helper()
	cfg := config.DefaultSiteConfig()
	cfg.Download.Dir = filepath.Join(t.TempDir(), "downloads")
	cfg.Download.PollInterval = 2 * time.Millisecond
	cfg.Download.MaxAttempts = 5
	cfg.Download.SettleDelay = time.Millisecond

	open := func(context.Context) (browser.Driver, error) { return drv, nil }
	p := New(&cfg, open, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Extractor = ext
	return p
}

func TestRunBuildsReport(t *testing.T) {
	drv := &fakeDriver{body: reportText}
	p := newTestPipeline(t, drv, textExtractor{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, drv.closes)

	require.Equal(t, "12.05.2024", report.LastUpdated)
	require.Equal(t, "Coffee Board of India", report.Source)
	require.Len(t, report.Prices, 4)
	require.Equal(t, "₹ 30000 - 30500", report.Prices[0].Price)
	require.Equal(t, "₹ 10000 - 10500", report.Prices[3].Price)
	require.Empty(t, report.FetchedAt)
}

func TestRunHeuristicMissIsNotAnError(t *testing.T) {
	drv := &fakeDriver{body: "Circular No. 1234\nNothing priced here 1111 2222\n"}
	p := newTestPipeline(t, drv, textExtractor{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.UnknownDate, report.LastUpdated)
	require.Len(t, report.Prices, 4)
	for _, q := range report.Prices {
		require.Equal(t, models.NotAvailable, q.Price)
	}
}

func TestRunIgnoresStaleDownloads(t *testing.T) {
	drv := &fakeDriver{}
	p := newTestPipeline(t, drv, textExtractor{})
	require.NoError(t, os.MkdirAll(p.Watcher.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.Watcher.Dir, "yesterday.pdf"), []byte(reportText), 0o644))

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, download.ErrTimeout)
}

func TestRunRemovesItsDownloadDir(t *testing.T) {
	drv := &fakeDriver{body: reportText}
	p := newTestPipeline(t, drv, textExtractor{})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, p.Watcher.Dir, filepath.Dir(drv.dir))
	_, err = os.Stat(drv.dir)
	require.True(t, os.IsNotExist(err))
}

func TestConcurrentRunsDoNotShareDownloads(t *testing.T) {
	p := newTestPipeline(t, nil, textExtractor{})
	p.Watcher.MaxAttempts = 200

	drivers := []*fakeDriver{
		{body: reportText, delay: 40 * time.Millisecond},
		{body: strings.Replace(reportText, "12.05.2024", "13.05.2024", 1)},
	}
	reports := make([]models.PriceReport, len(drivers))
	errs := make([]error, len(drivers))

	var wg sync.WaitGroup
	for i, drv := range drivers {
		i, drv := i, drv
		wg.Add(1)
		go func() {
			defer wg.Done()
			run := *p
			run.Open = func(context.Context) (browser.Driver, error) { return drv, nil }
			reports[i], errs[i] = run.Run(context.Background())
		}()
	}
	wg.Wait()

	for i := range drivers {
		require.NoError(t, errs[i])
		require.Equal(t, 1, drivers[i].closes)
	}
	require.NotEqual(t, drivers[0].dir, drivers[1].dir)
	require.Equal(t, "12.05.2024", reports[0].LastUpdated)
	require.Equal(t, "13.05.2024", reports[1].LastUpdated)
}

func TestRunClosesBrowserOnceOnEveryFailure(t *testing.T) {
	cases := []struct {
		name    string
		drv     *fakeDriver
		ext     pdftext.Extractor
		wantErr error
	}{
		{
			name:    "click fails",
			drv:     &fakeDriver{triggerErr: browser.ErrAcquisition},
			ext:     textExtractor{},
			wantErr: browser.ErrAcquisition,
		},
		{
			name:    "download never lands",
			drv:     &fakeDriver{},
			ext:     textExtractor{},
			wantErr: download.ErrTimeout,
		},
		{
			name:    "extraction fails",
			drv:     &fakeDriver{body: reportText},
			ext:     textExtractor{err: pdftext.ErrExtraction},
			wantErr: pdftext.ErrExtraction,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline(t, tc.drv, tc.ext)
			sink := &recordingSink{}

			err := p.RunTo(context.Background(), sink)
			require.ErrorIs(t, err, tc.wantErr)
			require.Equal(t, 1, tc.drv.closes)
			require.Empty(t, sink.reports)
		})
	}
}

func TestRunLaunchFailure(t *testing.T) {
	p := newTestPipeline(t, &fakeDriver{}, textExtractor{})
	p.Open = func(context.Context) (browser.Driver, error) {
		return nil, errors.New("chrome not found")
	}
	_, err := p.Run(context.Background())
	require.EqualError(t, err, "chrome not found")
}

func TestRunToFileSinkIsIdempotent(t *testing.T) {
	out := filepath.Join(t.TempDir(), "prices.json")
	var contents []string
	for i := 0; i < 2; i++ {
		p := newTestPipeline(t, &fakeDriver{body: reportText}, textExtractor{})
		stamp := time.Date(2024, 5, 12, 4, 30, i, 0, time.UTC)
		sink := publisher.FileSink{Path: out, Now: func() time.Time { return stamp }}
		require.NoError(t, p.RunTo(context.Background(), sink))

		raw, err := os.ReadFile(out)
		require.NoError(t, err)
		contents = append(contents, string(raw))
	}

	require.NotEqual(t, contents[0], contents[1])
	strip := func(s string) string {
		return regexpFetchedAt.ReplaceAllString(s, `"fetchedAt": ""`)
	}
	require.Equal(t, strip(contents[0]), strip(contents[1]))
}
