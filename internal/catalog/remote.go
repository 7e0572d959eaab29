package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"seasonstay/internal/models"
)

// SourceRemote marks listings fetched from the hosted catalog backend
const SourceRemote = "remote"

// RemoteClient reads the accommodations table of a PostgREST-compatible
// backend.
type RemoteClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// RemoteOption configures a RemoteClient
type RemoteOption func(*RemoteClient)

// WithRemoteHTTPClient sets a custom HTTP client
func WithRemoteHTTPClient(client *http.Client) RemoteOption {
	return func(c *RemoteClient) {
		c.httpClient = client
	}
}

// NewRemoteClient creates a client for baseURL authenticated with apiKey
func NewRemoteClient(baseURL, apiKey string, opts ...RemoteOption) *RemoteClient {
	c := &RemoteClient{
		httpClient: http.DefaultClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type remoteAccommodation struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	Surface     float64         `json:"surface"`
	Rooms       int             `json:"rooms"`
	Type        string          `json:"type"`
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`
	City        string          `json:"city"`
	Address     string          `json:"address"`
	Images      []string        `json:"images"`
	PartnerID   string          `json:"partner_id"`
	URL         string          `json:"url"`
}

// FetchListings returns every accommodation of the remote table
func (c *RemoteClient) FetchListings(ctx context.Context) ([]models.Listing, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("order", "id.asc")
	requestURL := fmt.Sprintf("%s/rest/v1/accommodations?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch accommodations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch accommodations: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []remoteAccommodation
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode accommodations: %w", err)
	}

	listings := make([]models.Listing, 0, len(rows))
	for _, r := range rows {
		id := strings.Trim(string(r.ID), `"`)
		if id == "" || id == "null" {
			continue
		}
		listings = append(listings, models.Listing{
			ExternalID:  id,
			Source:      SourceRemote,
			PartnerID:   r.PartnerID,
			URL:         r.URL,
			Title:       r.Title,
			Description: r.Description,
			Price:       r.Price,
			Surface:     r.Surface,
			Rooms:       r.Rooms,
			Type:        models.PropertyType(r.Type),
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			City:        r.City,
			Address:     r.Address,
			Images:      r.Images,
		})
	}
	return listings, nil
}

// Fetcher pulls listings from an upstream
type Fetcher interface {
	FetchListings(ctx context.Context) ([]models.Listing, error)
}

// Store persists listings and lists them back in catalog order
type Store interface {
	Source
	UpsertListing(ctx context.Context, l *models.Listing) (int64, error)
}

// Refresher copies upstream listings into the store and reloads the catalog
// from it.
type Refresher struct {
	fetcher Fetcher
	store   Store
	catalog *Catalog
	logger  zerolog.Logger
}

// NewRefresher creates a Refresher
func NewRefresher(fetcher Fetcher, store Store, catalog *Catalog, logger zerolog.Logger) *Refresher {
	return &Refresher{
		fetcher: fetcher,
		store:   store,
		catalog: catalog,
		logger:  logger.With().Str("component", "catalog_refresh").Logger(),
	}
}

// Refresh runs one fetch-upsert-reload cycle. A failed fetch leaves both the
// store and the catalog untouched.
func (r *Refresher) Refresh(ctx context.Context) error {
	listings, err := r.fetcher.FetchListings(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("remote catalog fetch failed")
		return err
	}

	saved := 0
	for i := range listings {
		if _, err := r.store.UpsertListing(ctx, &listings[i]); err != nil {
			r.logger.Warn().Err(err).
				Str("external_id", listings[i].ExternalID).
				Msg("failed to save remote listing")
			continue
		}
		saved++
	}

	if err := r.catalog.Reload(ctx, r.store); err != nil {
		return err
	}

	r.logger.Info().
		Int("fetched", len(listings)).
		Int("saved", saved).
		Int("catalog_size", r.catalog.Len()).
		Msg("catalog refreshed")
	return nil
}

// SeedStore writes the demo listings into store. Existing seed rows are
// updated in place.
func SeedStore(ctx context.Context, store Store) (int, error) {
	seed := Seed()
	for i := range seed {
		if _, err := store.UpsertListing(ctx, &seed[i]); err != nil {
			return i, fmt.Errorf("seed listing %d: %w", seed[i].ID, err)
		}
	}
	return len(seed), nil
}
