// Package mapview keeps a map widget's viewport in step with the search
// origin, radius and results.
package mapview

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"seasonstay/internal/geo"
	"seasonstay/internal/models"
)

// DefaultZoom is used with geo.DefaultCenter when there is nothing to show
const DefaultZoom = 5

// fallbackRadiusKm is drawn when the radius is unusable
const fallbackRadiusKm = 10.0

// OverlayID identifies an overlay added to the map
type OverlayID int

// CircleStyle is how the radius indicator is drawn
type CircleStyle struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fill_color"`
	FillOpacity float64 `json:"fill_opacity"`
	Weight      int     `json:"weight"`
	DashArray   string  `json:"dash_array"`
}

// RadiusStyle is the style of the search radius circle
var RadiusStyle = CircleStyle{
	Color:       "#3B82F6",
	FillColor:   "#3B82F6",
	FillOpacity: 0.1,
	Weight:      2,
	DashArray:   "5, 5",
}

// FitOptions tunes FlyToBounds
type FitOptions struct {
	Padding int `json:"padding"`
	MaxZoom int `json:"max_zoom"`
}

// Marker is a result pin with its popup text
type Marker struct {
	ListingID int64      `json:"listing_id"`
	Position  geo.LatLng `json:"position"`
	Title     string     `json:"title"`
	Popup     string     `json:"popup"`
}

// Map is the public surface of the map widget
type Map interface {
	SetView(center geo.LatLng, zoom int)
	FlyToBounds(bounds geo.Bounds, opts FitOptions)
	AddCircle(center geo.LatLng, radiusMeters float64, style CircleStyle) OverlayID
	RemoveOverlay(id OverlayID)
	SetMarkers(markers []Marker)
}

// ZoomForRadius maps a search radius to a zoom level. Smaller radii zoom
// closer.
func ZoomForRadius(km float64) int {
	switch {
	case km <= 1:
		return 15
	case km <= 2:
		return 14
	case km <= 5:
		return 13
	case km <= 10:
		return 12
	case km <= 20:
		return 11
	case km <= 50:
		return 10
	case km <= 100:
		return 9
	default:
		return 8
	}
}

// Synchronizer moves a Map to fit each new result set. It never returns an
// error: anything that goes wrong resets the map to the default view.
type Synchronizer struct {
	mu      sync.Mutex
	m       Map
	logger  zerolog.Logger
	circle  OverlayID
	drawn   bool
	padding int
}

// NewSynchronizer creates a synchronizer driving m
func NewSynchronizer(m Map, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{m: m, logger: logger, padding: 50}
}

// ResultsChanged lets a Synchronizer listen to a search controller
func (s *Synchronizer) ResultsChanged(origin *models.SearchOrigin, filters models.SearchFilters, results []models.FilteredResult) {
	s.Sync(origin, filters.RadiusKm, results)
}

// Sync fits the map to origin, its radius circle and every result with
// valid coordinates. The previous circle is removed first. Without an origin
// the markers are placed and the map shows the default view.
func (s *Synchronizer) Sync(origin *models.SearchOrigin, radiusKm float64, results []models.FilteredResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("viewport sync failed, resetting to default view")
			s.resetLocked()
		}
	}()

	if err := s.syncLocked(origin, radiusKm, results); err != nil {
		s.logger.Warn().Err(err).Msg("viewport sync failed, resetting to default view")
		s.resetLocked()
	}
}

func (s *Synchronizer) syncLocked(origin *models.SearchOrigin, radiusKm float64, results []models.FilteredResult) error {
	s.removeCircleLocked()

	markers := make([]Marker, 0, len(results))
	var bounds geo.Bounds
	for _, r := range results {
		lat, lng, ok := r.Coordinates()
		if !ok || !geo.ValidCoordinate(lat, lng) {
			continue
		}
		p := geo.LatLng{Lat: lat, Lng: lng}
		bounds.Extend(p)
		markers = append(markers, Marker{
			ListingID: r.ID,
			Position:  p,
			Title:     r.Title,
			Popup:     popup(r),
		})
	}
	s.m.SetMarkers(markers)

	// without an origin the pins are shown over the default view
	if origin == nil {
		s.m.SetView(defaultView(), DefaultZoom)
		return nil
	}
	if !geo.ValidCoordinate(origin.Latitude, origin.Longitude) {
		return fmt.Errorf("invalid origin %v,%v", origin.Latitude, origin.Longitude)
	}

	if math.IsNaN(radiusKm) || radiusKm <= 0 {
		radiusKm = fallbackRadiusKm
	}
	zoom := ZoomForRadius(radiusKm)

	center := geo.LatLng{Lat: origin.Latitude, Lng: origin.Longitude}
	s.circle = s.m.AddCircle(center, radiusKm*1000, RadiusStyle)
	s.drawn = true

	bounds.Extend(center)
	bounds.Union(geo.CircleBounds(center, radiusKm))

	if bounds.SouthWest == bounds.NorthEast {
		s.m.SetView(center, zoom)
		return nil
	}
	s.m.FlyToBounds(bounds, FitOptions{Padding: s.padding, MaxZoom: zoom})
	return nil
}

func (s *Synchronizer) resetLocked() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("map reset failed")
		}
	}()
	s.removeCircleLocked()
	s.m.SetView(defaultView(), DefaultZoom)
}

func defaultView() geo.LatLng {
	return geo.LatLng{Lat: geo.DefaultCenter.Latitude, Lng: geo.DefaultCenter.Longitude}
}

func (s *Synchronizer) removeCircleLocked() {
	if !s.drawn {
		return
	}
	s.drawn = false
	s.m.RemoveOverlay(s.circle)
}

func popup(r models.FilteredResult) string {
	text := fmt.Sprintf("%s · %.0f €/mois", r.Title, r.Price)
	if r.DistanceKm != nil {
		text += fmt.Sprintf(" · %.1f km", *r.DistanceKm)
	}
	return text
}
