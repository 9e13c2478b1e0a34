package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

// DefaultControllerURL is the portal endpoint serving tender tabs.
const DefaultControllerURL = "https://tenders.procurement.gov.ge/public/library/controller.php"

// RenderFunc returns the rendered HTML of a page.
type RenderFunc func(ctx context.Context, pageURL string) (string, error)

// CaptureOptions configures a TabCapturer.
type CaptureOptions struct {
	ControllerURL string
	// OutputDir receives pg_{tender}_{app}_{tab}.html files.
	OutputDir string
	// TabTimeout bounds the rendering of one tab.
	TabTimeout time.Duration
	// Settle is how long to wait after the body is ready.
	Settle time.Duration
	Tabs   []snapshot.Tab
}

// TabCapturer saves the tabs of a tender as snapshot files.
type TabCapturer struct {
	opts   CaptureOptions
	render RenderFunc
	logger *zap.Logger
}

// NewTabCapturer creates a capturer. A nil render uses a headless Chrome.
func NewTabCapturer(opts CaptureOptions, render RenderFunc, logger *zap.Logger) *TabCapturer {
	if opts.ControllerURL == "" {
		opts.ControllerURL = DefaultControllerURL
	}
	if opts.TabTimeout <= 0 {
		opts.TabTimeout = DefaultTimeout
	}
	if opts.Settle <= 0 {
		opts.Settle = time.Second
	}
	if len(opts.Tabs) == 0 {
		opts.Tabs = snapshot.AllTabs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &TabCapturer{opts: opts, render: render, logger: logger}
	if c.render == nil {
		c.render = c.renderWithBrowser
	}
	return c
}

// TabURL builds the controller URL of one tab. The contract tab is served
// without the access key.
func (c *TabCapturer) TabURL(s types.TenderSummary, tab snapshot.Tab) string {
	q := url.Values{}
	q.Set("action", string(tab))
	q.Set("app_id", strconv.FormatInt(s.ApplicationID, 10))
	if tab != snapshot.TabContract && s.Token != "" {
		q.Set("key", s.Token)
	}
	return c.opts.ControllerURL + "?" + q.Encode()
}

// Capture renders every configured tab of the tender and writes it to the
// output directory. Tabs that fail are logged and skipped; the returned paths
// cover the tabs that were saved. An error is returned only when no tab was
// saved.
func (c *TabCapturer) Capture(ctx context.Context, s types.TenderSummary) ([]string, error) {
	if s.TenderNumber == "" || s.ApplicationID == 0 {
		return nil, fmt.Errorf("cannot capture tender without number and application id: %+v", s)
	}
	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	log := c.logger.With(zap.Int64("application_id", s.ApplicationID), zap.String("tender", s.TenderNumber))
	var paths []string
	var lastErr error
	for _, tab := range c.opts.Tabs {
		if ctx.Err() != nil {
			return paths, ctx.Err()
		}
		pageURL := c.TabURL(s, tab)
		tabCtx, cancel := context.WithTimeout(ctx, c.opts.TabTimeout)
		html, err := c.render(tabCtx, pageURL)
		cancel()
		if err != nil {
			lastErr = &Error{URL: pageURL, Message: "render failed", Cause: err}
			log.Warn("Failed to capture tab", zap.String("tab", string(tab)), zap.Error(err))
			continue
		}

		path := filepath.Join(c.opts.OutputDir, snapshot.FileName(s.TenderNumber, s.ApplicationID, tab))
		if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
			return paths, fmt.Errorf("failed to write snapshot %s: %w", path, err)
		}
		log.Debug("Saved tab", zap.String("path", path))
		paths = append(paths, path)
	}
	if len(paths) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return paths, nil
}

// renderWithBrowser renders a page in a headless browser and returns the
// rendered HTML. Requires Chrome/Chromium to be installed on the system.
func (c *TabCapturer) renderWithBrowser(ctx context.Context, pageURL string) (string, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(c.opts.Settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}
	return html, nil
}
