package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasonstay/internal/catalog"
	"seasonstay/internal/favorites"
	"seasonstay/internal/geocoding"
	"seasonstay/internal/models"
	"seasonstay/internal/search"
	"seasonstay/internal/session"
)

type fakePlaces struct {
	mu          sync.Mutex
	suggestions []models.PlaceSuggestion
	details     *models.PlaceDetails
	err         error
}

func (p *fakePlaces) set(details *models.PlaceDetails, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.details, p.err = details, err
}

func (p *fakePlaces) GeocodeAddress(_ context.Context, q string) ([]models.PlaceSuggestion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if strings.TrimSpace(q) == "" {
		return []models.PlaceSuggestion{}, nil
	}
	return p.suggestions, nil
}

func (p *fakePlaces) ReverseGeocode(context.Context, float64, float64) (*models.PlaceDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.details == nil {
		return nil, geocoding.ErrNoResult
	}
	return p.details, nil
}

type failingStorage struct{ *favorites.MemoryStorage }

func (failingStorage) Put(context.Context, string, []byte) error { return errors.New("disk full") }

var grenoble = models.PlaceSuggestion{
	ID: "grenoble-isère", Name: "Grenoble", Department: "Isère",
	FullName: "Grenoble, Isère (Auvergne-Rhône-Alpes)", Latitude: 45.1875602, Longitude: 5.7357819,
	Importance: 0.7, Kind: "city",
}

type testServer struct {
	*httptest.Server
	places *fakePlaces
}

func newTestServer(t *testing.T, storage favorites.Storage) *testServer {
	t.Helper()
	if storage == nil {
		storage = favorites.NewMemoryStorage()
	}
	cat := catalog.New(catalog.Seed())
	places := &fakePlaces{
		suggestions: []models.PlaceSuggestion{grenoble},
		details:     &models.PlaceDetails{City: "Fontaine", Formatted: "Fontaine, France"},
	}
	sessions := session.NewManager(cat, places, session.Options{Debounce: search.MinDebounce, Logger: zerolog.Nop()})
	t.Cleanup(sessions.Close)

	router := NewRouter(Deps{
		Catalog:        cat,
		Places:         places,
		Favorites:      favorites.NewStores(storage, cat, zerolog.Nop()),
		Sessions:       sessions,
		Logger:         zerolog.Nop(),
		Environment:    "test",
		AllowedOrigins: []string{"https://seasonstay.fr"},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, places: places}
}

func (s *testServer) do(t *testing.T, method, path, body string, header ...string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := srv.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

type listingsResponse struct {
	Listings []models.FilteredResult `json:"listings"`
	Count    int                     `json:"count"`
	Filters  models.SearchFilters    `json:"filters"`
}

func listingIDs(rs []models.FilteredResult) []int64 {
	out := []int64{}
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestListListings(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("around a point", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodGet, "/api/listings?lat=45.1711&lon=5.6961&radius=5", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[listingsResponse](t, body)
		require.NotEmpty(t, got.Listings)
		assert.Equal(t, int64(1), got.Listings[0].ID)
		require.NotNil(t, got.Listings[0].DistanceKm)
		// 2.95 km to the seed coordinates, rounded to one decimal
		assert.Equal(t, 3.0, *got.Listings[0].DistanceKm)
		for _, l := range got.Listings {
			assert.LessOrEqual(t, *l.DistanceKm, 5.0)
		}
		assert.Equal(t, len(got.Listings), got.Count)
	})

	t.Run("browse without origin", func(t *testing.T) {
		_, body := srv.do(t, http.MethodGet, "/api/listings?price_min=0&price_max=10000", "")
		got := decode[listingsResponse](t, body)
		assert.Len(t, got.Listings, 12)
		assert.Nil(t, got.Listings[0].DistanceKm)
	})

	t.Run("types and partners", func(t *testing.T) {
		_, body := srv.do(t, http.MethodGet, "/api/listings?type=Studio&partner=p3", "")
		got := decode[listingsResponse](t, body)
		assert.Equal(t, []int64{10}, listingIDs(got.Listings))
	})

	t.Run("dates are normalized", func(t *testing.T) {
		_, body := srv.do(t, http.MethodGet, "/api/listings?from=2025-07-10&to=2025-07-01", "")
		got := decode[listingsResponse](t, body)
		require.NotNil(t, got.Filters.Dates)
		assert.Equal(t, got.Filters.Dates.Start, got.Filters.Dates.End)
	})

	for _, path := range []string{
		"/api/listings?lat=91&lon=5",
		"/api/listings?lat=45",
		"/api/listings?lat=abc&lon=5",
		"/api/listings?radius=0",
		"/api/listings?radius=101",
		"/api/listings?price_min=900&price_max=100",
		"/api/listings?price_min=-1",
	} {
		t.Run("rejects "+path, func(t *testing.T) {
			resp, _ := srv.do(t, http.MethodGet, path, "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
		})
	}
}

func TestGetListing(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := srv.do(t, http.MethodGet, "/api/listings/3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Saint-Ismier", decode[models.Listing](t, body).City)

	resp, _ = srv.do(t, http.MethodGet, "/api/listings/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/listings/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFilterOptions(t *testing.T) {
	srv := newTestServer(t, nil)
	_, body := srv.do(t, http.MethodGet, "/api/filters/options", "")
	got := decode[map[string]any](t, body)
	assert.Equal(t, []any{"Studio", "Appartement", "Maison", "Loft"}, got["property_types"])
	assert.Equal(t, 480.0, got["price_min"])
	assert.Equal(t, 1500.0, got["price_max"])
	assert.Len(t, got["partners"], 3)
}

func TestPlaces(t *testing.T) {
	srv := newTestServer(t, nil)

	_, body := srv.do(t, http.MethodGet, "/api/places/search?q=grenoble", "")
	got := decode[map[string][]models.PlaceSuggestion](t, body)
	assert.Equal(t, []models.PlaceSuggestion{grenoble}, got["suggestions"])

	_, body = srv.do(t, http.MethodGet, "/api/places/search?q=%20%20", "")
	assert.JSONEq(t, `{"suggestions":[]}`, string(body))

	resp, body := srv.do(t, http.MethodGet, "/api/places/reverse?lat=45.17&lon=5.69", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Fontaine", decode[models.PlaceDetails](t, body).City)

	resp, _ = srv.do(t, http.MethodGet, "/api/places/reverse?lat=45.17", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	srv.places.set(nil, nil)
	resp, _ = srv.do(t, http.MethodGet, "/api/places/reverse?lat=45.17&lon=5.69", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	srv.places.set(nil, geocoding.ErrTransport)
	resp, _ = srv.do(t, http.MethodGet, "/api/places/search?q=lyon", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

type favoritesResponse struct {
	Favorites []models.Favorite `json:"favorites"`
	Favorite  bool              `json:"favorite"`
	Count     int               `json:"count"`
}

func TestFavorites(t *testing.T) {
	srv := newTestServer(t, nil)
	client := []string{"X-Client-ID", "browser-1"}

	resp, _ := srv.do(t, http.MethodGet, "/api/favorites", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "client id is required")

	_, body := srv.do(t, http.MethodGet, "/api/favorites", "", client...)
	assert.Empty(t, decode[favoritesResponse](t, body).Favorites)

	resp, body = srv.do(t, http.MethodPost, "/api/favorites/3/toggle", "", client...)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[favoritesResponse](t, body)
	assert.True(t, got.Favorite)
	require.Len(t, got.Favorites, 1)
	assert.Equal(t, "Saint-Ismier", got.Favorites[0].City)

	_, body = srv.do(t, http.MethodGet, "/api/favorites/3", "", client...)
	assert.True(t, decode[favoritesResponse](t, body).Favorite)

	// another browser has its own set
	_, body = srv.do(t, http.MethodGet, "/api/favorites", "", "X-Client-ID", "browser-2")
	assert.Equal(t, 0, decode[favoritesResponse](t, body).Count)

	_, body = srv.do(t, http.MethodPost, "/api/favorites/3/toggle", "", client...)
	got = decode[favoritesResponse](t, body)
	assert.False(t, got.Favorite)
	assert.Empty(t, got.Favorites)

	resp, _ = srv.do(t, http.MethodPost, "/api/favorites/999/toggle", "", client...)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFavorites_WriteFailure(t *testing.T) {
	srv := newTestServer(t, failingStorage{favorites.NewMemoryStorage()})
	client := []string{"X-Client-ID", "browser-1"}

	resp, body := srv.do(t, http.MethodPost, "/api/favorites/2/toggle", "", client...)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	got := decode[map[string]any](t, body)
	extra := got["extra"].(map[string]any)
	assert.Len(t, extra["favorites"], 1)

	// memory kept the toggle
	_, body = srv.do(t, http.MethodGet, "/api/favorites/2", "", client...)
	assert.True(t, decode[favoritesResponse](t, body).Favorite)
}

func TestSessions(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := srv.do(t, http.MethodPost, "/api/sessions?wait=true",
		`{"position":{"latitude":45.1928,"longitude":5.6858}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	snap := decode[session.Snapshot](t, body)
	require.NotEmpty(t, snap.ID)
	require.NotNil(t, snap.Origin)
	assert.Equal(t, "Fontaine", snap.Origin.Label)
	assert.Len(t, snap.Viewport.Circles, 1)
	base := "/api/sessions/" + snap.ID

	_, body = srv.do(t, http.MethodPut, base+"/query?wait=true", `{"query":"grenoble"}`)
	snap = decode[session.Snapshot](t, body)
	assert.Equal(t, []models.PlaceSuggestion{grenoble}, snap.Suggestions)

	body, _ = json.Marshal(grenoble)
	_, data := srv.do(t, http.MethodPost, base+"/select", string(body))
	snap = decode[session.Snapshot](t, data)
	assert.Equal(t, models.OriginLookup, snap.Origin.Source)
	assert.Empty(t, snap.Suggestions)

	_, data = srv.do(t, http.MethodPatch, base+"/filters", `{"radius_km":250,"price_min":900,"price_max":100,"types":["Studio"]}`)
	snap = decode[session.Snapshot](t, data)
	assert.Equal(t, models.MaxRadiusKm, snap.Filters.RadiusKm)
	assert.Equal(t, [2]float64{100, 100}, snap.Filters.PriceRange)
	assert.Equal(t, []models.PropertyType{models.TypeStudio}, snap.Filters.Types)

	_, data = srv.do(t, http.MethodPost, base+"/panels/radius", "")
	assert.Equal(t, search.PanelRadius, decode[session.Snapshot](t, data).ActivePanel)
	_, data = srv.do(t, http.MethodPost, base+"/panels/price", "")
	assert.Equal(t, search.PanelPrice, decode[session.Snapshot](t, data).ActivePanel)
	_, data = srv.do(t, http.MethodPost, base+"/click", `{"target":"outside"}`)
	assert.Equal(t, search.PanelNone, decode[session.Snapshot](t, data).ActivePanel)

	resp, _ = srv.do(t, http.MethodPost, base+"/panels/map", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = srv.do(t, http.MethodPost, base+"/select", `{"name":"Nowhere","latitude":200,"longitude":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = srv.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessions_WithoutPosition(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := srv.do(t, http.MethodPost, "/api/sessions?wait=true", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	snap := decode[session.Snapshot](t, body)
	assert.Nil(t, snap.Origin)
	assert.NotEmpty(t, snap.Message)
	assert.NotEmpty(t, snap.Results, "the catalog is browsable before a location is known")
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := srv.do(t, http.MethodOptions, "/api/listings", "", "Origin", "https://seasonstay.fr")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://seasonstay.fr", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = srv.do(t, http.MethodGet, "/api/health", "", "Origin", "https://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, http.MethodGet, "/api/health", "")

	resp, body := srv.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `seasonstay_http_requests_total{method="GET",path="/api/health",status="200"}`)
}
