package models

import "time"

// OriginSource tells how a search origin was resolved
type OriginSource string

const (
	OriginDevice OriginSource = "device"
	OriginLookup OriginSource = "lookup"
)

// SearchOrigin is the point a search is centred on. It is always replaced as
// a whole value.
type SearchOrigin struct {
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Label     string       `json:"label"`
	Source    OriginSource `json:"source"`
}

// Filter bounds shared by the controller, the API and the seed data.
const (
	MinRadiusKm     = 1.0
	MaxRadiusKm     = 100.0
	DefaultRadiusKm = 5.0
	DefaultPriceMax = 1000.0
)

// SearchFilters holds the user-chosen constraints
type SearchFilters struct {
	RadiusKm   float64        `json:"radius_km" validate:"gte=1,lte=100"`
	PriceRange [2]float64     `json:"price_range"`
	Types      []PropertyType `json:"types"`
	Partners   []string       `json:"partners,omitempty"`
	Dates      *DateRange     `json:"dates,omitempty"`
}

// DefaultFilters returns the filters a new search starts with
func DefaultFilters() SearchFilters {
	return SearchFilters{
		RadiusKm:   DefaultRadiusKm,
		PriceRange: [2]float64{0, DefaultPriceMax},
		Types:      []PropertyType{},
	}
}

// Clone returns a deep copy so callers can't alias slices.
func (f SearchFilters) Clone() SearchFilters {
	out := f
	out.Types = append([]PropertyType{}, f.Types...)
	if f.Partners != nil {
		out.Partners = append([]string{}, f.Partners...)
	}
	if f.Dates != nil {
		d := *f.Dates
		out.Dates = &d
	}
	return out
}

// PlaceSuggestion is one candidate of a free-text place lookup
type PlaceSuggestion struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Department string  `json:"department"`
	Region     string  `json:"region"`
	FullName   string  `json:"full_name"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Importance float64 `json:"importance"`
	Kind       string  `json:"kind"`
}

// PlaceDetails is the result of a reverse lookup
type PlaceDetails struct {
	Formatted string `json:"formatted"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
	Postcode  string `json:"postcode"`
}

// Favorite is a snapshot of a saved listing. The snapshot keeps the card
// renderable after the listing leaves the catalog.
type Favorite struct {
	ID      int64        `json:"id"`
	Title   string       `json:"title"`
	Price   float64      `json:"price"`
	Type    PropertyType `json:"type"`
	City    string       `json:"city"`
	Address string       `json:"address"`
	Surface float64      `json:"surface"`
	Rooms   int          `json:"rooms"`
	Image   string       `json:"image,omitempty"`
	SavedAt time.Time    `json:"saved_at"`
}

// NewFavorite snapshots a listing
func NewFavorite(l Listing, now time.Time) Favorite {
	fav := Favorite{
		ID:      l.ID,
		Title:   l.Title,
		Price:   l.Price,
		Type:    l.Type,
		City:    l.City,
		Address: l.Address,
		Surface: l.Surface,
		Rooms:   l.Rooms,
		SavedAt: now.UTC(),
	}
	if len(l.Images) > 0 {
		fav.Image = l.Images[0]
	}
	return fav
}
