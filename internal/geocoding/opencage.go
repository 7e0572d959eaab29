package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"seasonstay/internal/geo"
	"seasonstay/internal/models"
)

// DefaultOpenCageURL is the public OpenCage API endpoint
const DefaultOpenCageURL = "https://api.opencagedata.com"

// OpenCageClient resolves coordinates to an address
type OpenCageClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	language   string
}

// NewOpenCageClient creates a reverse geocoding client. The API key is sent
// with every request.
func NewOpenCageClient(baseURL, apiKey string, httpClient *http.Client) *OpenCageClient {
	if baseURL == "" {
		baseURL = DefaultOpenCageURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenCageClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		language:   "fr",
	}
}

type openCageResponse struct {
	Results []struct {
		Formatted  string `json:"formatted"`
		Components struct {
			City     string `json:"city"`
			Town     string `json:"town"`
			Village  string `json:"village"`
			State    string `json:"state"`
			Country  string `json:"country"`
			Postcode string `json:"postcode"`
		} `json:"components"`
	} `json:"results"`
}

// ReverseGeocode returns the best address for a coordinate
func (c *OpenCageClient) ReverseGeocode(ctx context.Context, lat, lon float64) (*models.PlaceDetails, error) {
	if !geo.ValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidInput)
	}

	// q is "lat+lon"; the plus must reach the server unescaped
	q := strconv.FormatFloat(lat, 'f', -1, 64) + "+" + strconv.FormatFloat(lon, 'f', -1, 64)
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("language", c.language)
	requestURL := fmt.Sprintf("%s/geocode/v1/json?q=%s&%s", c.baseURL, q, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrTransport, resp.StatusCode)
	}

	var body openCageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrTransport, err)
	}
	if len(body.Results) == 0 {
		return nil, ErrNoResult
	}

	r := body.Results[0]
	city := r.Components.City
	if city == "" {
		city = r.Components.Town
	}
	if city == "" {
		city = r.Components.Village
	}
	return &models.PlaceDetails{
		Formatted: r.Formatted,
		City:      city,
		State:     r.Components.State,
		Country:   r.Components.Country,
		Postcode:  r.Components.Postcode,
	}, nil
}
