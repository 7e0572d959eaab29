package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"seasonstay/internal/geo"
	"seasonstay/internal/geocoding"
	"seasonstay/internal/metrics"
	"seasonstay/internal/models"
)

const (
	// DefaultDebounce is the pause after the last keystroke before a lookup
	DefaultDebounce = 400 * time.Millisecond
	MinDebounce     = 300 * time.Millisecond
	MaxDebounce     = 500 * time.Millisecond
)

// Geocoder is the subset of the geocoding service the controller drives
type Geocoder interface {
	GeocodeAddress(ctx context.Context, query string) ([]models.PlaceSuggestion, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (*models.PlaceDetails, error)
}

// Listings supplies the catalog to filter
type Listings interface {
	All() []models.Listing
}

// Listener receives every new result set. It is called with the controller
// lock held and must not call back into the controller.
type Listener interface {
	ResultsChanged(origin *models.SearchOrigin, filters models.SearchFilters, results []models.FilteredResult)
}

// Timer is a pending scheduled call
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. Tests swap in a manual one.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// State is a copy of what the search view renders
type State struct {
	Query       string                   `json:"query"`
	Suggestions []models.PlaceSuggestion `json:"suggestions"`
	Origin      *models.SearchOrigin     `json:"origin"`
	Filters     models.SearchFilters     `json:"filters"`
	Results     []models.FilteredResult  `json:"results"`
	ActivePanel Panel                    `json:"active_panel"`
	Message     string                   `json:"message,omitempty"`
	Loading     bool                     `json:"loading"`
}

// Controller owns the origin and filters of one search view. Every change
// re-runs the filter synchronously and publishes the results to listeners.
// Place lookups are debounced and tagged with a token; a completion whose
// token is no longer the latest is dropped.
type Controller struct {
	mu   sync.Mutex
	idle *sync.Cond

	listings  Listings
	geocoder  Geocoder
	locator   geocoding.Locator
	scheduler Scheduler
	debounce  time.Duration
	logger    zerolog.Logger
	listeners []Listener
	bus       *ClickBus
	panels    *Panels

	ctx    context.Context
	cancel context.CancelFunc

	query       string
	suggestions []models.PlaceSuggestion
	queryToken  uint64
	timer       Timer
	pending     int
	loading     int

	origin      *models.SearchOrigin
	originToken uint64
	explicit    bool

	filters models.SearchFilters
	results []models.FilteredResult
	message string
	closed  bool
}

// Option configures a Controller
type Option func(*Controller)

// WithLocator sets the device position source
func WithLocator(l geocoding.Locator) Option {
	return func(c *Controller) { c.locator = l }
}

// WithScheduler replaces the wall-clock debounce scheduler
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.scheduler = s }
}

// WithDebounce sets the lookup delay, clamped to [MinDebounce, MaxDebounce]
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		c.debounce = min(max(d, MinDebounce), MaxDebounce)
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithListener adds a result listener
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l) }
}

// WithClickBus shares a click bus with other widgets of the view
func WithClickBus(b *ClickBus) Option {
	return func(c *Controller) { c.bus = b }
}

// NewController creates a controller over listings. Until an origin is
// known the results are the whole catalog filtered by the default filters.
func NewController(listings Listings, geocoder Geocoder, opts ...Option) *Controller {
	c := &Controller{
		listings:  listings,
		geocoder:  geocoder,
		locator:   geocoding.NewStaticLocator(nil),
		scheduler: clockScheduler{},
		debounce:  DefaultDebounce,
		logger:    zerolog.Nop(),
		filters:   models.DefaultFilters(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = NewClickBus()
	}
	c.panels = NewPanels(c.bus)
	c.idle = sync.NewCond(&c.mu)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.mu.Lock()
	c.refilterLocked()
	c.mu.Unlock()
	return c
}

// Mount resolves the device position and adopts it as origin unless an
// explicit place was selected meanwhile. The label comes from reverse
// geocoding, or the nearest reference city when that fails.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.originToken++
	token := c.originToken
	c.pending++
	c.loading++
	c.mu.Unlock()
	defer c.finish(true)

	pos, err := c.locator.CurrentPosition(ctx)
	if err != nil {
		c.logger.Info().Err(err).Msg("device position unavailable")
		c.mu.Lock()
		if !c.closed && token == c.originToken && !c.explicit {
			c.message = Message(err)
		}
		c.mu.Unlock()
		return err
	}

	label := ""
	details, err := c.geocoder.ReverseGeocode(ctx, pos.Latitude, pos.Longitude)
	switch {
	case err != nil:
		c.logger.Debug().Err(err).Msg("reverse geocoding failed, using nearest city")
	case details == nil:
	case details.City != "":
		label = details.City
	default:
		label = details.Formatted
	}
	if label == "" {
		city, _ := geo.NearestCity(pos.Latitude, pos.Longitude)
		label = city.Name
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.explicit || token != c.originToken {
		c.logger.Debug().Msg("device position superseded by explicit search")
		return nil
	}
	c.origin = &models.SearchOrigin{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Label:     label,
		Source:    models.OriginDevice,
	}
	c.message = ""
	c.refilterLocked()
	return nil
}

// SetQuery records the typed text and schedules a lookup after the debounce
// delay. Each call supersedes the previous pending lookup.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.query = q
	c.queryToken++
	c.stopTimerLocked()

	if strings.TrimSpace(q) == "" {
		c.suggestions = nil
		return
	}

	token := c.queryToken
	c.pending++
	c.timer = c.scheduler.AfterFunc(c.debounce, func() { c.lookup(token, q) })
}

func (c *Controller) lookup(token uint64, q string) {
	c.mu.Lock()
	if c.closed || token != c.queryToken {
		c.mu.Unlock()
		c.finish(false)
		return
	}
	c.timer = nil
	c.loading++
	ctx := c.ctx
	c.mu.Unlock()
	defer c.finish(true)

	suggestions, err := c.geocoder.GeocodeAddress(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || token != c.queryToken {
		c.logger.Debug().Str("query", q).Msg("dropping stale suggestions")
		return
	}
	if err != nil {
		c.message = Message(err)
		return
	}
	c.suggestions = suggestions
	if len(suggestions) == 0 {
		c.message = Message(geocoding.ErrNoResult)
	} else {
		c.message = ""
	}
}

// SelectSuggestion makes s the origin. Pending lookups are discarded and a
// device position still resolving will not replace it.
func (c *Controller) SelectSuggestion(s models.PlaceSuggestion) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if !geo.ValidCoordinate(s.Latitude, s.Longitude) {
		c.message = Message(geocoding.ErrInvalidInput)
		return fmt.Errorf("%w: suggestion has no valid coordinate", geocoding.ErrInvalidInput)
	}

	label := s.FullName
	if label == "" {
		label = s.Name
	}
	c.origin = &models.SearchOrigin{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Label:     label,
		Source:    models.OriginLookup,
	}
	c.explicit = true
	c.originToken++

	c.query = label
	c.queryToken++
	c.stopTimerLocked()
	c.suggestions = nil
	c.message = ""

	c.refilterLocked()
	return nil
}

// SetRadius sets the search radius, clamped to [MinRadiusKm, MaxRadiusKm]
func (c *Controller) SetRadius(km float64) {
	c.update(func(f *models.SearchFilters) { f.RadiusKm = clampRadius(km) })
}

// SetPriceRange sets both bounds. Negative values become 0 and a min above
// max is lowered to max.
func (c *Controller) SetPriceRange(lo, hi float64) {
	c.update(func(f *models.SearchFilters) { f.PriceRange = clampPrice(lo, hi) })
}

// SetMinPrice moves the lower bound, never past the upper one
func (c *Controller) SetMinPrice(v float64) {
	c.update(func(f *models.SearchFilters) {
		f.PriceRange = clampPrice(min(nonNegative(v), f.PriceRange[1]), f.PriceRange[1])
	})
}

// SetMaxPrice moves the upper bound, never below the lower one
func (c *Controller) SetMaxPrice(v float64) {
	c.update(func(f *models.SearchFilters) {
		f.PriceRange = clampPrice(f.PriceRange[0], max(nonNegative(v), f.PriceRange[0]))
	})
}

// ToggleType adds or removes a property type from the selection
func (c *Controller) ToggleType(t models.PropertyType) {
	c.update(func(f *models.SearchFilters) { f.Types = toggle(f.Types, t) })
}

// SetTypes replaces the type selection. Empty selects all types.
func (c *Controller) SetTypes(types []models.PropertyType) {
	c.update(func(f *models.SearchFilters) { f.Types = dedupe(types) })
}

// TogglePartner adds or removes a partner from the selection
func (c *Controller) TogglePartner(id string) {
	c.update(func(f *models.SearchFilters) { f.Partners = toggle(f.Partners, id) })
}

// SetPartners replaces the partner selection. Empty selects all partners.
func (c *Controller) SetPartners(ids []string) {
	c.update(func(f *models.SearchFilters) { f.Partners = dedupe(ids) })
}

// SetDates sets the requested stay. An end before start collapses to start.
func (c *Controller) SetDates(start, end time.Time) {
	c.update(func(f *models.SearchFilters) { f.Dates = NormalizeDates(start, end) })
}

// ClearDates removes the date constraint
func (c *Controller) ClearDates() {
	c.update(func(f *models.SearchFilters) { f.Dates = nil })
}

// FilterPatch changes several filters in one pass. Nil fields are left alone.
type FilterPatch struct {
	RadiusKm   *float64               `json:"radius_km,omitempty"`
	PriceMin   *float64               `json:"price_min,omitempty"`
	PriceMax   *float64               `json:"price_max,omitempty"`
	Types      *[]models.PropertyType `json:"types,omitempty"`
	Partners   *[]string              `json:"partners,omitempty"`
	Dates      *models.DateRange      `json:"dates,omitempty"`
	ClearDates bool                   `json:"clear_dates,omitempty"`
}

// Apply applies p with the same clamping as the single-field setters
func (c *Controller) Apply(p FilterPatch) {
	c.update(func(f *models.SearchFilters) {
		if p.RadiusKm != nil {
			f.RadiusKm = clampRadius(*p.RadiusKm)
		}
		lo, hi := f.PriceRange[0], f.PriceRange[1]
		if p.PriceMin != nil {
			lo = *p.PriceMin
		}
		if p.PriceMax != nil {
			hi = *p.PriceMax
		}
		f.PriceRange = clampPrice(lo, hi)
		if p.Types != nil {
			f.Types = dedupe(*p.Types)
		}
		if p.Partners != nil {
			f.Partners = dedupe(*p.Partners)
		}
		if p.ClearDates {
			f.Dates = nil
		} else if p.Dates != nil {
			f.Dates = NormalizeDates(p.Dates.Start, p.Dates.End)
		}
	})
}

// Refresh re-runs the filter, e.g. after a catalog reload
func (c *Controller) Refresh() {
	c.update(func(*models.SearchFilters) {})
}

func (c *Controller) update(fn func(f *models.SearchFilters)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	fn(&c.filters)
	c.refilterLocked()
}

// TogglePanel opens p, closing any other, or closes it when already open
func (c *Controller) TogglePanel(p Panel) Panel {
	return c.panels.Toggle(p)
}

// Click dispatches a pointer event to the view's click bus
func (c *Controller) Click(click Click) {
	c.bus.Publish(click)
}

// Panels returns the filter panel state
func (c *Controller) Panels() *Panels {
	return c.panels
}

// State returns a copy of the view state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Query:       c.query,
		Suggestions: slices.Clone(c.suggestions),
		Filters:     c.filters.Clone(),
		Results:     slices.Clone(c.results),
		ActivePanel: c.panels.Active(),
		Message:     c.message,
		Loading:     c.loading > 0,
	}
	if s.Suggestions == nil {
		s.Suggestions = []models.PlaceSuggestion{}
	}
	if c.origin != nil {
		o := *c.origin
		s.Origin = &o
	}
	return s
}

// Wait blocks until no lookup or mount is scheduled or running
func (c *Controller) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pending > 0 {
		c.idle.Wait()
	}
}

// Close tears the view down: the pending lookup is cancelled, in-flight
// completions are ignored and the click subscription is released.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.cancel()
	c.mu.Unlock()

	c.panels.CloseAll()
}

func (c *Controller) refilterLocked() {
	c.results = Filter(c.listings.All(), c.origin, c.filters)
	metrics.SearchResults.Observe(float64(len(c.results)))

	var origin *models.SearchOrigin
	if c.origin != nil {
		o := *c.origin
		origin = &o
	}
	for _, l := range c.listeners {
		l.ResultsChanged(origin, c.filters.Clone(), slices.Clone(c.results))
	}
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil && c.timer.Stop() {
		c.pending--
		c.broadcastIfIdleLocked()
	}
	c.timer = nil
}

func (c *Controller) finish(wasLoading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wasLoading {
		c.loading--
	}
	c.pending--
	c.broadcastIfIdleLocked()
}

func (c *Controller) broadcastIfIdleLocked() {
	if c.pending == 0 {
		c.idle.Broadcast()
	}
}

// Message turns a pipeline error into the text shown to the user
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, geocoding.ErrInvalidInput):
		return "Please enter a valid place."
	case errors.Is(err, geocoding.ErrGeolocationDenied):
		return "Location access was denied. Search for a city instead."
	case errors.Is(err, geocoding.ErrGeolocationUnavailable):
		return "Your location is unavailable. Search for a city instead."
	case errors.Is(err, geocoding.ErrGeolocationTimeout):
		return "Locating you took too long. Search for a city instead."
	case errors.Is(err, geocoding.ErrNoResult):
		return "No matching place found."
	case errors.Is(err, geocoding.ErrTransport):
		return "The place search is unavailable right now. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

func clampRadius(km float64) float64 {
	if math.IsNaN(km) {
		return models.DefaultRadiusKm
	}
	return min(max(km, models.MinRadiusKm), models.MaxRadiusKm)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func clampPrice(lo, hi float64) [2]float64 {
	lo, hi = nonNegative(lo), nonNegative(hi)
	if lo > hi {
		lo = hi
	}
	return [2]float64{lo, hi}
}

func toggle[T comparable](set []T, v T) []T {
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	return append(slices.Clone(set), v)
}

func dedupe[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
