package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Browser renders partner pages in headless Chrome, for sites that only
// emit their JSON-LD from JavaScript.
type Browser struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	headless bool
	settle   time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewBrowser creates a browser. settle is how long a page may keep running
// scripts after the body is ready.
func NewBrowser(headless bool, settle time.Duration, logger zerolog.Logger) *Browser {
	return &Browser{
		headless: headless,
		settle:   settle,
		timeout:  45 * time.Second,
		logger:   logger.With().Str("component", "browser").Logger(),
	}
}

// Start launches the Chrome process
func (b *Browser) Start() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1280, 900),
		chromedp.UserAgent(UserAgent),
	)
	b.allocCtx, b.cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return nil
}

// Stop closes the browser
func (b *Browser) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

// FetchHTML loads pageURL in a new tab and returns the rendered document
func (b *Browser) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	if b.allocCtx == nil {
		return "", errors.New("browser not started")
	}

	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	// stop the tab when the caller gives up
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html, location string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML("html", &html),
		chromedp.Location(&location),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}

	b.logger.Debug().Str("url", location).Int("html_bytes", len(html)).Msg("page rendered")
	return html, nil
}
