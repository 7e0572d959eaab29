package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"seasonstay/internal/geo"
	"seasonstay/internal/models"
)

const (
	// DefaultNominatimURL is the public Nominatim API endpoint
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies the application per OSM usage policy
	DefaultUserAgent = "SeasonStay/1.0"
	// DefaultRateLimit is 1 request per second (OSM policy)
	DefaultRateLimit = rate.Limit(1.0)

	// MaxSuggestions caps the suggestions returned to a caller
	MaxSuggestions = 5
	searchLimit    = 10
)

// NominatimClient resolves free text to French places
type NominatimClient struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	country     string
	language    string
	featureType string
	limiter     *rate.Limiter
}

// NominatimOption configures a NominatimClient
type NominatimOption func(*NominatimClient)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) NominatimOption {
	return func(c *NominatimClient) {
		c.httpClient = client
	}
}

// WithRateLimit sets a custom rate limit (requests per second). Zero or
// less disables limiting.
func WithRateLimit(rps float64) NominatimOption {
	return func(c *NominatimClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) NominatimOption {
	return func(c *NominatimClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithFeatureType restricts results to a Nominatim feature type. Empty
// sends no restriction.
func WithFeatureType(featureType string) NominatimOption {
	return func(c *NominatimClient) {
		c.featureType = featureType
	}
}

// NewNominatimClient creates a client for baseURL restricted to France
func NewNominatimClient(baseURL string, opts ...NominatimOption) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	c := &NominatimClient{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(baseURL, "/"),
		userAgent:   DefaultUserAgent,
		country:     "fr",
		language:    "fr",
		featureType: "settlement",
		limiter:     rate.NewLimiter(DefaultRateLimit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type nominatimAddress struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	County  string `json:"county"`
	State   string `json:"state"`
}

type nominatimResult struct {
	Lat        string            `json:"lat"`
	Lon        string            `json:"lon"`
	Importance float64           `json:"importance"`
	Address    *nominatimAddress `json:"address"`
}

// GeocodeAddress returns up to MaxSuggestions places matching query, most
// important first. A blank query returns an empty list without any request.
func (c *NominatimClient) GeocodeAddress(ctx context.Context, query string) ([]models.PlaceSuggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.PlaceSuggestion{}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(searchLimit))
	params.Set("countrycodes", c.country)
	params.Set("accept-language", c.language)
	if c.featureType != "" {
		params.Set("featuretype", c.featureType)
	}
	requestURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	var results []nominatimResult
	if err := c.get(ctx, requestURL, &results); err != nil {
		return nil, err
	}
	return dedupeSuggestions(results), nil
}

type nominatimReverse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		nominatimAddress
		Country  string `json:"country"`
		Postcode string `json:"postcode"`
	} `json:"address"`
}

// ReverseGeocode converts coordinates to an address. Used when no OpenCage
// key is configured.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, lat, lon float64) (*models.PlaceDetails, error) {
	if !geo.ValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidInput)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("accept-language", c.language)
	requestURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())

	var result nominatimReverse
	if err := c.get(ctx, requestURL, &result); err != nil {
		return nil, err
	}
	if result.Error != "" || result.DisplayName == "" {
		return nil, ErrNoResult
	}

	a := result.Address
	city := a.City
	if city == "" {
		city = a.Town
	}
	if city == "" {
		city = a.Village
	}
	return &models.PlaceDetails{
		Formatted: result.DisplayName,
		City:      city,
		State:     a.State,
		Country:   a.Country,
		Postcode:  a.Postcode,
	}, nil
}

func (c *NominatimClient) get(ctx context.Context, requestURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	// Nominatim requires a valid User-Agent
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response: %v", ErrTransport, err)
	}
	return nil
}

// dedupeSuggestions keys results by lower(name)-lower(department), keeps the
// most important of each key and returns the top MaxSuggestions.
func dedupeSuggestions(results []nominatimResult) []models.PlaceSuggestion {
	out := make([]models.PlaceSuggestion, 0, len(results))
	index := make(map[string]int)

	for _, r := range results {
		if r.Address == nil {
			continue
		}
		a := r.Address
		name, kind := a.City, "city"
		switch {
		case a.City != "":
		case a.Town != "":
			name, kind = a.Town, "town"
		case a.Village != "":
			name, kind = a.Village, "village"
		default:
			continue
		}

		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lon, errLon := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLon != nil {
			continue
		}

		department := a.County
		if department == "" {
			department = a.State
		}

		s := models.PlaceSuggestion{
			ID:         strings.ToLower(name) + "-" + strings.ToLower(department),
			Name:       name,
			Department: department,
			Region:     a.State,
			FullName:   fullName(name, department, a.State),
			Latitude:   lat,
			Longitude:  lon,
			Importance: r.Importance,
			Kind:       kind,
		}

		if i, seen := index[s.ID]; seen {
			if out[i].Importance < s.Importance {
				out[i] = s
			}
			continue
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

func fullName(name, department, region string) string {
	var b strings.Builder
	b.WriteString(name)
	if department != "" {
		b.WriteString(", ")
		b.WriteString(department)
	}
	if region != "" {
		b.WriteString(" (")
		b.WriteString(region)
		b.WriteString(")")
	}
	return b.String()
}
