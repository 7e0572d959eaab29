package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"seasonstay/internal/api/problem"
	"seasonstay/internal/catalog"
	"seasonstay/internal/favorites"
	"seasonstay/internal/geocoding"
	"seasonstay/internal/models"
	"seasonstay/internal/search"
	"seasonstay/internal/session"
)

// Places is the geocoding surface used by the HTTP API
type Places interface {
	GeocodeAddress(ctx context.Context, query string) ([]models.PlaceSuggestion, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (*models.PlaceDetails, error)
}

// Handlers contains HTTP handlers and their dependencies
type Handlers struct {
	catalog   *catalog.Catalog
	places    Places
	favorites *favorites.Stores
	sessions  *session.Manager
	validate  *validator.Validate
	env       string
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		catalog:   deps.Catalog,
		places:    deps.Places,
		favorites: deps.Favorites,
		sessions:  deps.Sessions,
		validate:  validator.New(),
		env:       deps.Environment,
	}
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listingsQuery is the parsed query string of GET /api/listings
type listingsQuery struct {
	Lat      float64 `validate:"latitude"`
	Lon      float64 `validate:"longitude"`
	RadiusKm float64 `validate:"gte=1,lte=100"`
	PriceMin float64 `validate:"gte=0"`
	PriceMax float64 `validate:"gte=0,gtefield=PriceMin"`
}

// ListListings handles GET /api/listings. Without lat/lon every listing
// matching the other filters is returned, with no distance.
func (h *Handlers) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	defaults := models.DefaultFilters()
	lq := listingsQuery{
		RadiusKm: defaults.RadiusKm,
		PriceMin: defaults.PriceRange[0],
		PriceMax: defaults.PriceRange[1],
	}

	var err error
	parse := func(key string, dst *float64) {
		v := q.Get(key)
		if v == "" || err != nil {
			return
		}
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			err = fmt.Errorf("%s: not a number", key)
			return
		}
		*dst = f
	}
	hasOrigin := q.Get("lat") != "" || q.Get("lon") != ""
	if hasOrigin && (q.Get("lat") == "" || q.Get("lon") == "") {
		err = errors.New("lat and lon must be given together")
	}
	parse("lat", &lq.Lat)
	parse("lon", &lq.Lon)
	parse("radius", &lq.RadiusKm)
	parse("price_min", &lq.PriceMin)
	parse("price_max", &lq.PriceMax)
	if err == nil {
		err = h.validate.Struct(lq)
	}
	if err != nil {
		h.invalid(w, r, err)
		return
	}

	filters := models.SearchFilters{
		RadiusKm:   lq.RadiusKm,
		PriceRange: [2]float64{lq.PriceMin, lq.PriceMax},
		Types:      []models.PropertyType{},
	}
	for _, t := range splitList(q.Get("type")) {
		filters.Types = append(filters.Types, models.PropertyType(t))
	}
	filters.Partners = splitList(q.Get("partner"))

	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		if from == "" {
			from = to
		}
		if to == "" {
			to = from
		}
		start, err := search.ParseDate(from)
		if err != nil {
			h.invalid(w, r, fmt.Errorf("from: %w", err))
			return
		}
		end, err := search.ParseDate(to)
		if err != nil {
			h.invalid(w, r, fmt.Errorf("to: %w", err))
			return
		}
		filters.Dates = search.NormalizeDates(start, end)
	}

	var origin *models.SearchOrigin
	if hasOrigin {
		origin = &models.SearchOrigin{Latitude: lq.Lat, Longitude: lq.Lon, Source: models.OriginLookup}
	}

	results := search.Filter(h.catalog.All(), origin, filters)
	writeJSON(w, http.StatusOK, map[string]any{
		"listings": results,
		"count":    len(results),
		"filters":  filters,
	})
}

// GetListing handles GET /api/listings/{id}
func (h *Handlers) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}

	listing, found := h.catalog.Get(id)
	if !found {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Listing not found", nil, h.env,
			problem.WithDetail(fmt.Sprintf("no listing with id %d", id)))
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// GetFilterOptions handles GET /api/filters/options
func (h *Handlers) GetFilterOptions(w http.ResponseWriter, r *http.Request) {
	opts := h.catalog.Options()
	writeJSON(w, http.StatusOK, map[string]any{
		"property_types": opts.Types,
		"partners":       opts.Partners,
		"price_min":      opts.PriceMin,
		"price_max":      opts.PriceMax,
		"count":          opts.Count,
		"radius": map[string]float64{
			"min":     models.MinRadiusKm,
			"max":     models.MaxRadiusKm,
			"default": models.DefaultRadiusKm,
		},
	})
}

// SearchPlaces handles GET /api/places/search?q=
func (h *Handlers) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.places.GeocodeAddress(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.geocodingError(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []models.PlaceSuggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// ReversePlace handles GET /api/places/reverse?lat=&lon=
func (h *Handlers) ReversePlace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		h.geocodingError(w, r, fmt.Errorf("%w: lat and lon are required", geocoding.ErrInvalidInput))
		return
	}

	details, err := h.places.ReverseGeocode(r.Context(), lat, lon)
	if err != nil {
		h.geocodingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// ListFavorites handles GET /api/favorites
func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	store, ok := h.favoritesStore(w, r)
	if !ok {
		return
	}
	items := store.List()
	writeJSON(w, http.StatusOK, map[string]any{"favorites": items, "count": len(items)})
}

// GetFavorite handles GET /api/favorites/{id}
func (h *Handlers) GetFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	store, ok := h.favoritesStore(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "favorite": store.IsFavorite(id)})
}

// ToggleFavorite handles POST /api/favorites/{id}/toggle. When the write
// fails the response is 503 but still carries the set kept in memory.
func (h *Handlers) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	store, ok := h.favoritesStore(w, r)
	if !ok {
		return
	}

	items, err := store.Toggle(r.Context(), id)
	switch {
	case errors.Is(err, favorites.ErrUnknownListing):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Listing not found", err, h.env)
	case errors.Is(err, favorites.ErrStorageWrite):
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeStorage, "Favorites not saved", err, h.env,
			problem.WithDetail("The change is kept for this session but could not be saved."),
			problem.WithExtra("favorites", items))
	case err != nil:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Favorites unavailable", err, h.env)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"favorites": items,
			"favorite":  store.IsFavorite(id),
		})
	}
}

func (h *Handlers) favoritesStore(w http.ResponseWriter, r *http.Request) (*favorites.Store, bool) {
	clientID := strings.TrimSpace(r.Header.Get("X-Client-ID"))
	if clientID == "" || len(clientID) > 128 {
		h.invalid(w, r, errors.New("X-Client-ID header is required"))
		return nil, false
	}
	store, err := h.favorites.For(r.Context(), clientID)
	if err != nil {
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeStorage, "Favorites unavailable", err, h.env)
		return nil, false
	}
	return store, true
}

func (h *Handlers) listingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.invalid(w, r, errors.New("invalid listing ID"))
		return 0, false
	}
	return id, true
}

func (h *Handlers) invalid(w http.ResponseWriter, r *http.Request, err error) {
	problem.Write(w, r, http.StatusBadRequest, problem.TypeInvalidInput, "Invalid request", err, h.env,
		problem.WithDetail(err.Error()))
}

// geocodingError maps geocoding sentinels to HTTP statuses
func (h *Handlers) geocodingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, geocoding.ErrInvalidInput):
		h.invalid(w, r, err)
	case errors.Is(err, geocoding.ErrNoResult):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "No matching place", err, h.env,
			problem.WithDetail(search.Message(err)))
	case errors.Is(err, geocoding.ErrTransport):
		problem.Write(w, r, http.StatusBadGateway, problem.TypeUpstream, "Place search unavailable", err, h.env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Place search failed", err, h.env)
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
