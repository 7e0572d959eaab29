package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasonstay/internal/db"
	"seasonstay/internal/geocoding"
	"seasonstay/internal/models"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) FetchHTML(_ context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pageURL)
	html, ok := f.pages[pageURL]
	if !ok {
		return "", errors.New("fetch " + pageURL + ": status 404")
	}
	return html, nil
}

type fakeSearcher struct {
	places map[string]models.PlaceSuggestion
}

func (s fakeSearcher) GeocodeAddress(_ context.Context, q string) ([]models.PlaceSuggestion, error) {
	if p, ok := s.places[q]; ok {
		return []models.PlaceSuggestion{p}, nil
	}
	return nil, geocoding.ErrNoResult
}

func ldPage(blocks ...string) string {
	var b strings.Builder
	b.WriteString("<html><head>")
	for _, block := range blocks {
		b.WriteString(`<script type="application/ld+json">` + block + `</script>`)
	}
	b.WriteString("</head><body></body></html>")
	return b.String()
}

func testDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestImporter_Run(t *testing.T) {
	database := testDB(t)
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://one.example.org/list": ldPage(
			`{"@type":"Apartment","identifier":"a1","name":"T2 Annecy","price":700,
			  "geo":{"latitude":45.8992,"longitude":6.1294},"address":{"addressLocality":"Annecy"}}`,
			`{"@type":"House","identifier":"h1","name":"Maison Albertville","offers":{"price":900},
			  "address":{"addressLocality":"Albertville"}}`,
			`{"@type":"Apartment","identifier":"x1","name":"Nulle part","price":400,
			  "address":{"addressLocality":"Atlantide"}}`,
		),
	}}
	browser := &fakeFetcher{pages: map[string]string{
		"https://two.example.org/js": ldPage(`{"@type":"Apartment","identifier":"b1","name":"Studio Chambéry","price":450,
			"geo":{"latitude":45.5646,"longitude":5.9178}}`),
	}}
	geocoder := fakeSearcher{places: map[string]models.PlaceSuggestion{
		"Albertville": {Name: "Albertville", Latitude: 45.6755, Longitude: 6.3925},
	}}

	imp := New(database, fetcher, Config{Workers: 2}, zerolog.Nop(),
		WithBrowser(browser), WithGeocoder(geocoder))
	res, err := imp.Run(context.Background(), []Page{
		{Partner: "p1", URL: "https://one.example.org/list"},
		{Partner: "p2", URL: "https://two.example.org/js", Browser: true},
		{Partner: "p1", URL: "https://one.example.org/gone"},
	})
	require.NoError(t, err)

	assert.Equal(t, Result{Pages: 3, Failed: 1, Found: 4, Geocoded: 1, Saved: 4}, res)
	assert.Equal(t, []string{"https://two.example.org/js"}, browser.calls)

	listings, err := database.ListListings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 4)

	byID := map[string]models.Listing{}
	for _, l := range listings {
		byID[l.ExternalID] = l
	}
	house := byID["p1:h1"]
	lat, lng, ok := house.Coordinates()
	require.True(t, ok, "geocoded from the city")
	assert.InDelta(t, 45.6755, lat, 1e-9)
	assert.InDelta(t, 6.3925, lng, 1e-9)

	_, _, ok = byID["p1:x1"].Coordinates()
	assert.False(t, ok, "kept without coordinates when the city is unknown")
	assert.Equal(t, "p2", byID["p2:b1"].PartnerID)
}

func TestImporter_RerunUpdatesInPlace(t *testing.T) {
	database := testDB(t)
	html := ldPage(`{"@type":"Apartment","identifier":"a1","name":"T2 Annecy","price":700,"geo":{"latitude":45.9,"longitude":6.1}}`)
	fetcher := &fakeFetcher{pages: map[string]string{"https://one.example.org/list": html}}
	pages := []Page{{Partner: "p1", URL: "https://one.example.org/list"}}

	imp := New(database, fetcher, Config{}, zerolog.Nop())
	_, err := imp.Run(context.Background(), pages)
	require.NoError(t, err)

	fetcher.pages["https://one.example.org/list"] = strings.Replace(html, `"price":700`, `"price":650`, 1)
	_, err = imp.Run(context.Background(), pages)
	require.NoError(t, err)

	listings, err := database.ListListings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, 650.0, listings[0].Price)
}

func TestImporter_BrowserPageWithoutBrowser(t *testing.T) {
	imp := New(testDB(t), &fakeFetcher{}, Config{}, zerolog.Nop())
	res, err := imp.Run(context.Background(), []Page{{Partner: "p2", URL: "https://two.example.org/js", Browser: true}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
}

func TestImporter_BrowserPageHonorsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	allowedURL := srv.URL + "/annonces"
	blockedURL := srv.URL + "/private/annonces"
	browser := &fakeFetcher{pages: map[string]string{
		allowedURL: ldPage(`{"@type":"Apartment","identifier":"b1","name":"Studio Chambéry","price":450}`),
		blockedURL: ldPage(`{"@type":"Apartment","identifier":"b2","name":"Caché","price":400}`),
	}}

	imp := New(testDB(t), NewHTTPFetcher(srv.Client()), Config{Workers: 1}, zerolog.Nop(), WithBrowser(browser))
	res, err := imp.Run(context.Background(), []Page{
		{Partner: "p2", URL: allowedURL, Browser: true},
		{Partner: "p2", URL: blockedURL, Browser: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, []string{allowedURL}, browser.calls, "the browser never opens a disallowed page")
}

func TestImporter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetcher := &fakeFetcher{pages: map[string]string{"https://one.example.org/list": ldPage()}}
	imp := New(testDB(t), fetcher, Config{DelayBetween: 0}, zerolog.Nop())

	_, err := imp.Run(ctx, []Page{{Partner: "p1", URL: "https://one.example.org/list"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
		case "/annonces":
			assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("<html>ok</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client())

	html, err := f.FetchHTML(context.Background(), srv.URL+"/annonces")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", html)

	_, err = f.FetchHTML(context.Background(), srv.URL+"/private/list")
	assert.ErrorIs(t, err, ErrDisallowed)

	_, err = f.FetchHTML(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = f.FetchHTML(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestHTTPFetcher_NoRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(nil).FetchHTML(context.Background(), srv.URL+"/anything")
	assert.NoError(t, err)
}
