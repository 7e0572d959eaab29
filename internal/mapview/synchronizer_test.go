package mapview

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasonstay/internal/geo"
	"seasonstay/internal/models"
)

func fp(v float64) *float64 { return &v }

func result(id int64, lat, lng *float64) models.FilteredResult {
	return models.FilteredResult{Listing: models.Listing{ID: id, Title: "Listing", Price: 500, Latitude: lat, Longitude: lng}}
}

var defaultCenter = geo.LatLng{Lat: geo.DefaultCenter.Latitude, Lng: geo.DefaultCenter.Longitude}

func TestZoomForRadius(t *testing.T) {
	cases := map[float64]int{
		0.5: 15, 1: 15, 1.5: 14, 2: 14, 3: 13, 5: 13, 7: 12, 10: 12,
		15: 11, 20: 11, 30: 10, 50: 10, 75: 9, 100: 9, 101: 8, 1000: 8,
	}
	for km, want := range cases {
		assert.Equal(t, want, ZoomForRadius(km), "radius %v", km)
	}

	// smaller radius never zooms out further
	prev := ZoomForRadius(0.1)
	for km := 0.1; km <= 200; km += 0.1 {
		z := ZoomForRadius(km)
		assert.LessOrEqual(t, z, prev)
		prev = z
	}
}

func TestSync_FitsOriginCircleAndResults(t *testing.T) {
	rec := NewRecorder(1024, 768)
	s := NewSynchronizer(rec, zerolog.Nop())
	origin := &models.SearchOrigin{Latitude: 45.1711, Longitude: 5.6961}

	s.Sync(origin, 5, []models.FilteredResult{
		result(1, fp(45.1885), fp(5.7245)),
		result(2, nil, nil),
	})

	v := rec.Viewport()
	require.NotNil(t, v.Bounds)
	assert.LessOrEqual(t, v.Zoom, ZoomForRadius(5))
	assert.Equal(t, 50, v.Padding)
	require.Len(t, v.Circles, 1)
	assert.Equal(t, 5000.0, v.Circles[0].RadiusMeters)
	assert.Equal(t, RadiusStyle, v.Circles[0].Style)
	require.Len(t, v.Markers, 1, "listings without coordinates get no marker")
	assert.Equal(t, int64(1), v.Markers[0].ListingID)

	// bounds hold the origin, the result and the circle
	b := *v.Bounds
	for _, p := range []geo.LatLng{{Lat: 45.1711, Lng: 5.6961}, {Lat: 45.1885, Lng: 5.7245}} {
		assert.True(t, p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat)
		assert.True(t, p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng)
	}
	assert.InDelta(t, 5, geo.Haversine(45.1711, 5.6961, b.NorthEast.Lat, 5.6961), 0.05)
}

func TestSync_ReplacesCircle(t *testing.T) {
	rec := NewRecorder(1024, 768)
	s := NewSynchronizer(rec, zerolog.Nop())
	origin := &models.SearchOrigin{Latitude: 48.8566, Longitude: 2.3522}

	for _, radius := range []float64{5, 10, 20, 1} {
		s.Sync(origin, radius, nil)
		v := rec.Viewport()
		require.Len(t, v.Circles, 1)
		assert.Equal(t, radius*1000, v.Circles[0].RadiusMeters)
	}

	// losing the origin removes the circle
	s.Sync(nil, 5, nil)
	assert.Empty(t, rec.Viewport().Circles)
}

func TestSync_DefaultViewWhenNothingToShow(t *testing.T) {
	rec := NewRecorder(1024, 768)
	s := NewSynchronizer(rec, zerolog.Nop())

	s.Sync(nil, 5, nil)
	v := rec.Viewport()
	assert.Equal(t, defaultCenter, v.Center)
	assert.Equal(t, DefaultZoom, v.Zoom)
	assert.Nil(t, v.Bounds)
	assert.Equal(t, 1, v.Updates)

	s.Sync(nil, 5, []models.FilteredResult{result(1, fp(math.NaN()), fp(2))})
	assert.Equal(t, defaultCenter, rec.Viewport().Center)
}

func TestSync_ResultsWithoutOriginKeepDefaultView(t *testing.T) {
	rec := NewRecorder(1024, 768)
	s := NewSynchronizer(rec, zerolog.Nop())

	s.Sync(nil, 5, []models.FilteredResult{
		result(1, fp(45.1885), fp(5.7245)),
		result(7, fp(48.8566), fp(2.3522)),
	})
	v := rec.Viewport()
	assert.Equal(t, defaultCenter, v.Center)
	assert.Equal(t, DefaultZoom, v.Zoom)
	assert.Nil(t, v.Bounds)
	assert.Empty(t, v.Circles)
	require.Len(t, v.Markers, 2, "pins still render")

	// after an origin search, clearing it goes back to the default view
	s.Sync(&models.SearchOrigin{Latitude: 45.1711, Longitude: 5.6961}, 5, []models.FilteredResult{result(1, fp(45.1885), fp(5.7245))})
	require.NotNil(t, rec.Viewport().Bounds)
	s.Sync(nil, 5, []models.FilteredResult{result(1, fp(45.1885), fp(5.7245))})
	v = rec.Viewport()
	assert.Equal(t, defaultCenter, v.Center)
	assert.Equal(t, DefaultZoom, v.Zoom)
	assert.Empty(t, v.Circles)
	assert.Len(t, v.Markers, 1)
}

func TestSync_InvalidOriginFallsBack(t *testing.T) {
	rec := NewRecorder(1024, 768)
	s := NewSynchronizer(rec, zerolog.Nop())

	s.Sync(&models.SearchOrigin{Latitude: math.NaN(), Longitude: 5}, 5, nil)
	v := rec.Viewport()
	assert.Equal(t, defaultCenter, v.Center)
	assert.Empty(t, v.Circles)
}

func TestSync_UnusableRadiusUsesFallback(t *testing.T) {
	rec := NewRecorder(1024, 768)
	s := NewSynchronizer(rec, zerolog.Nop())

	s.Sync(&models.SearchOrigin{Latitude: 45, Longitude: 5}, math.NaN(), nil)
	require.Len(t, rec.Viewport().Circles, 1)
	assert.Equal(t, fallbackRadiusKm*1000, rec.Viewport().Circles[0].RadiusMeters)
}

type panickyMap struct {
	*Recorder
	panicOnFly bool
}

func (m *panickyMap) FlyToBounds(b geo.Bounds, opts FitOptions) {
	if m.panicOnFly {
		panic("widget exploded")
	}
	m.Recorder.FlyToBounds(b, opts)
}

func TestSync_RecoversFromWidgetPanic(t *testing.T) {
	m := &panickyMap{Recorder: NewRecorder(1024, 768), panicOnFly: true}
	s := NewSynchronizer(m, zerolog.Nop())

	assert.NotPanics(t, func() {
		s.Sync(&models.SearchOrigin{Latitude: 45.17, Longitude: 5.69}, 5, nil)
	})
	v := m.Viewport()
	assert.Equal(t, defaultCenter, v.Center)
	assert.Equal(t, DefaultZoom, v.Zoom)
	assert.Empty(t, v.Circles, "the circle drawn before the failure is removed")

	m.panicOnFly = false
	s.Sync(&models.SearchOrigin{Latitude: 45.17, Longitude: 5.69}, 5, nil)
	assert.Len(t, m.Viewport().Circles, 1)
}

func TestSynchronizer_ListensToResults(t *testing.T) {
	rec := NewRecorder(800, 600)
	s := NewSynchronizer(rec, zerolog.Nop())
	f := models.DefaultFilters()
	f.RadiusKm = 20

	s.ResultsChanged(&models.SearchOrigin{Latitude: 45.56, Longitude: 5.91}, f, nil)
	v := rec.Viewport()
	require.Len(t, v.Circles, 1)
	assert.Equal(t, 20000.0, v.Circles[0].RadiusMeters)
	assert.LessOrEqual(t, v.Zoom, ZoomForRadius(20))
}

func TestFitZoom(t *testing.T) {
	france := geo.NewBounds(geo.LatLng{Lat: 42.3, Lng: -4.8}, geo.LatLng{Lat: 51.1, Lng: 8.2})
	assert.Equal(t, 6, fitZoom(france, 924, 668, 15))
	assert.Equal(t, 3, fitZoom(france, 924, 668, 3))
	assert.Equal(t, 9, fitZoom(france, 0, 0, 9))
}
