package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// UserAgent identifies the importer to partner sites
const UserAgent = "SeasonStayImporter/1.0 (+https://seasonstay.fr)"

const maxPageBytes = 10 << 20

// HTTPFetcher downloads partner pages without running scripts. Pages
// disallowed by the site's robots.txt are refused.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher. A nil client gets a 30s timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{client: client, userAgent: UserAgent}
}

// Allowed returns ErrDisallowed when the site's robots.txt forbids pageURL
// to the importer.
func (f *HTTPFetcher) Allowed(ctx context.Context, pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid page URL %q", pageURL)
	}
	allowed, err := f.robotsAllowed(ctx, u)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrDisallowed, pageURL)
	}
	return nil
}

// FetchHTML returns the body of pageURL
func (f *HTTPFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	if err := f.Allowed(ctx, pageURL); err != nil {
		return "", err
	}

	resp, err := f.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pageURL, err)
	}
	return string(body), nil
}

// robotsAllowed applies robots.txt. An unreachable robots.txt allows the
// fetch; a 5xx answer disallows it.
func (f *HTTPFetcher) robotsAllowed(ctx context.Context, u *url.URL) (bool, error) {
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	resp, err := f.get(ctx, robotsURL)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, nil
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return true, nil
	}
	return robots.TestAgent(u.Path, f.userAgent), nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return resp, nil
}
