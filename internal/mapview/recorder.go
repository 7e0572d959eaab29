package mapview

import (
	"math"
	"slices"
	"sync"

	"seasonstay/internal/geo"
)

// Circle is a drawn radius indicator
type Circle struct {
	ID           OverlayID   `json:"id"`
	Center       geo.LatLng  `json:"center"`
	RadiusMeters float64     `json:"radius_meters"`
	Style        CircleStyle `json:"style"`
}

// Viewport is the map state a front end should render
type Viewport struct {
	Center  geo.LatLng  `json:"center"`
	Zoom    int         `json:"zoom"`
	Bounds  *geo.Bounds `json:"bounds,omitempty"`
	Padding int         `json:"padding,omitempty"`
	Circles []Circle    `json:"circles"`
	Markers []Marker    `json:"markers"`
	Updates int         `json:"updates"`
}

// Recorder is a headless Map. It keeps the resulting viewport so it can be
// served to a browser that renders it.
type Recorder struct {
	mu       sync.Mutex
	width    int
	height   int
	next     OverlayID
	viewport Viewport
	circles  map[OverlayID]Circle
}

// NewRecorder creates a recorder for a widthxheight pixel map showing the
// default view.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{
		width:  width,
		height: height,
		viewport: Viewport{
			Center: geo.LatLng{Lat: geo.DefaultCenter.Latitude, Lng: geo.DefaultCenter.Longitude},
			Zoom:   DefaultZoom,
		},
		circles: make(map[OverlayID]Circle),
	}
}

// SetView implements Map
func (r *Recorder) SetView(center geo.LatLng, zoom int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewport.Center = center
	r.viewport.Zoom = zoom
	r.viewport.Bounds = nil
	r.viewport.Padding = 0
	r.viewport.Updates++
}

// FlyToBounds implements Map. The zoom is the highest that fits bounds in
// the map size, capped at opts.MaxZoom.
func (r *Recorder) FlyToBounds(bounds geo.Bounds, opts FitOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := bounds
	r.viewport.Center = bounds.Center()
	r.viewport.Zoom = fitZoom(bounds, r.width-2*opts.Padding, r.height-2*opts.Padding, opts.MaxZoom)
	r.viewport.Bounds = &b
	r.viewport.Padding = opts.Padding
	r.viewport.Updates++
}

// AddCircle implements Map
func (r *Recorder) AddCircle(center geo.LatLng, radiusMeters float64, style CircleStyle) OverlayID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.circles[r.next] = Circle{ID: r.next, Center: center, RadiusMeters: radiusMeters, Style: style}
	return r.next
}

// RemoveOverlay implements Map
func (r *Recorder) RemoveOverlay(id OverlayID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.circles, id)
}

// SetMarkers implements Map
func (r *Recorder) SetMarkers(markers []Marker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewport.Markers = slices.Clone(markers)
}

// Viewport returns a copy of the current map state
func (r *Recorder) Viewport() Viewport {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.viewport
	if v.Bounds != nil {
		b := *v.Bounds
		v.Bounds = &b
	}
	v.Markers = slices.Clone(v.Markers)
	if v.Markers == nil {
		v.Markers = []Marker{}
	}
	v.Circles = make([]Circle, 0, len(r.circles))
	for _, c := range r.circles {
		v.Circles = append(v.Circles, c)
	}
	slices.SortFunc(v.Circles, func(a, b Circle) int { return int(a.ID - b.ID) })
	return v
}

const (
	tileSize = 256.0
	minZoom  = 0
)

// fitZoom returns the largest zoom <= maxZoom at which bounds fit in a
// width x height pixel area (web mercator).
func fitZoom(bounds geo.Bounds, width, height, maxZoom int) int {
	if width <= 0 || height <= 0 {
		return maxZoom
	}
	dx := (bounds.NorthEast.Lng - bounds.SouthWest.Lng) / 360
	dy := (mercatorY(bounds.NorthEast.Lat) - mercatorY(bounds.SouthWest.Lat)) / (2 * math.Pi)

	for z := maxZoom; z > minZoom; z-- {
		scale := tileSize * math.Exp2(float64(z))
		if dx*scale <= float64(width) && dy*scale <= float64(height) {
			return z
		}
	}
	return minZoom
}

func mercatorY(lat float64) float64 {
	lat = math.Max(-85.0511, math.Min(85.0511, lat))
	rad := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + rad/2))
}
