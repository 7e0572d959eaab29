// Package scraper imports partner listings: it fetches partner pages,
// extracts their schema.org accommodations, geocodes the ones without
// coordinates and upserts them into the catalog store.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"seasonstay/internal/catalog"
	"seasonstay/internal/geocoding"
	"seasonstay/internal/models"
)

// ErrDisallowed is returned for pages robots.txt forbids
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Page is one partner page to import
type Page struct {
	Partner string `yaml:"partner"`
	URL     string `yaml:"url"`
	// Browser renders the page in Chrome before extraction
	Browser bool `yaml:"browser"`
}

// LoadPages reads a YAML list of pages:
//
//	pages:
//	  - partner: p1
//	    url: https://example.org/logements
func LoadPages(data []byte) ([]Page, error) {
	var doc struct {
		Pages []Page `yaml:"pages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid pages file: %w", err)
	}
	for i, p := range doc.Pages {
		if strings.TrimSpace(p.URL) == "" || strings.TrimSpace(p.Partner) == "" {
			return nil, fmt.Errorf("page %d: partner and url are required", i+1)
		}
	}
	return doc.Pages, nil
}

// Fetcher returns the HTML of a page
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// RobotsChecker reports whether robots.txt lets the importer fetch a page.
// Pages rendered in the browser are checked with it first.
type RobotsChecker interface {
	Allowed(ctx context.Context, pageURL string) error
}

// Config holds importer settings
type Config struct {
	Workers      int
	DelayBetween time.Duration
}

// DefaultConfig returns default importer settings
func DefaultConfig() Config {
	return Config{
		Workers:      3,
		DelayBetween: 2 * time.Second,
	}
}

// Result summarises an import run
type Result struct {
	Pages    int
	Failed   int
	Found    int
	Geocoded int
	Saved    int
}

// Importer runs partner imports
type Importer struct {
	store    catalog.Store
	fetcher  Fetcher
	browser  Fetcher
	geocoder geocoding.Searcher
	config   Config
	logger   zerolog.Logger
}

// Option configures an Importer
type Option func(*Importer)

// WithBrowser sets the fetcher used for pages marked browser
func WithBrowser(f Fetcher) Option {
	return func(s *Importer) { s.browser = f }
}

// WithGeocoder enables geocoding of listings without coordinates
func WithGeocoder(g geocoding.Searcher) Option {
	return func(s *Importer) { s.geocoder = g }
}

// New creates an Importer
func New(store catalog.Store, fetcher Fetcher, config Config, logger zerolog.Logger, opts ...Option) *Importer {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	s := &Importer{
		store:   store,
		fetcher: fetcher,
		config:  config,
		logger:  logger.With().Str("component", "importer").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run imports pages. A page that fails is logged and counted; the run only
// fails when ctx is cancelled.
func (s *Importer) Run(ctx context.Context, pages []Page) (Result, error) {
	start := time.Now()
	res := Result{Pages: len(pages)}

	var (
		mu       sync.Mutex
		listings []models.Listing
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for _, page := range pages {
		g.Go(func() error {
			found, err := s.scrapePage(gctx, page)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn().Err(err).Str("url", page.URL).Msg("page import failed")
				res.Failed++
				return nil
			}
			listings = append(listings, found...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Found = len(listings)

	for i := range listings {
		if _, _, ok := listings[i].Coordinates(); ok || s.geocoder == nil {
			continue
		}
		if err := s.geocode(ctx, &listings[i]); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.logger.Debug().Err(err).Str("external_id", listings[i].ExternalID).Msg("geocoding failed")
			continue
		}
		res.Geocoded++
	}

	for i := range listings {
		if _, err := s.store.UpsertListing(ctx, &listings[i]); err != nil {
			s.logger.Warn().Err(err).Str("external_id", listings[i].ExternalID).Msg("failed to save listing")
			continue
		}
		res.Saved++
	}

	s.logger.Info().
		Int("pages", res.Pages).
		Int("failed", res.Failed).
		Int("found", res.Found).
		Int("geocoded", res.Geocoded).
		Int("saved", res.Saved).
		Dur("duration", time.Since(start)).
		Msg("import complete")
	return res, nil
}

func (s *Importer) scrapePage(ctx context.Context, page Page) ([]models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fetcher := s.fetcher
	if page.Browser {
		if s.browser == nil {
			return nil, errors.New("page needs a browser but none is configured")
		}
		if robots, ok := s.fetcher.(RobotsChecker); ok {
			if err := robots.Allowed(ctx, page.URL); err != nil {
				return nil, err
			}
		}
		fetcher = s.browser
	}

	html, err := fetcher.FetchHTML(ctx, page.URL)
	if err != nil {
		return nil, err
	}
	listings, err := ExtractListings(html, page)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("url", page.URL).Str("partner", page.Partner).Int("listings", len(listings)).Msg("page scraped")

	// be polite to the partner site
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.config.DelayBetween):
	}
	return listings, nil
}

// geocode places a listing at the best match for its address or city
func (s *Importer) geocode(ctx context.Context, l *models.Listing) error {
	query := l.City
	if query == "" {
		query = l.Address
	}
	if query == "" {
		return fmt.Errorf("%w: no address", geocoding.ErrInvalidInput)
	}
	suggestions, err := s.geocoder.GeocodeAddress(ctx, query)
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		return geocoding.ErrNoResult
	}
	lat, lng := suggestions[0].Latitude, suggestions[0].Longitude
	l.Latitude, l.Longitude = &lat, &lng
	if l.City == "" {
		l.City = suggestions[0].Name
	}
	return nil
}
