package models

import (
	"time"
)

// PropertyType is the kind of housing unit. Values outside the known set are
// kept as-is and match only an identical type filter.
type PropertyType string

const (
	TypeStudio      PropertyType = "Studio"
	TypeAppartement PropertyType = "Appartement"
	TypeMaison      PropertyType = "Maison"
	TypeLoft        PropertyType = "Loft"
)

// KnownTypes lists the property types offered by the type filter.
var KnownTypes = []PropertyType{TypeStudio, TypeAppartement, TypeMaison, TypeLoft}

// DateRange is an inclusive range of days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two inclusive ranges share at least one instant.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !r.End.Before(o.Start)
}

// Listing represents a housing unit available for seasonal rental
type Listing struct {
	ID          int64        `json:"id"`
	ExternalID  string       `json:"external_id,omitempty"`
	Source      string       `json:"source"`
	PartnerID   string       `json:"partner_id,omitempty"`
	URL         string       `json:"url,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`   // Monthly rent in euros
	Surface     float64      `json:"surface"` // Living surface in m²
	Rooms       int          `json:"rooms"`
	Type        PropertyType `json:"type"`
	Latitude    *float64     `json:"latitude"`
	Longitude   *float64     `json:"longitude"`
	City        string       `json:"city"`
	Address     string       `json:"address"`
	Images      []string     `json:"images"`
	Unavailable []DateRange  `json:"unavailable,omitempty"`
}

// Coordinates returns the listing position and whether both parts are present.
func (l Listing) Coordinates() (lat, lng float64, ok bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return 0, 0, false
	}
	return *l.Latitude, *l.Longitude, true
}

// FilteredResult is a listing annotated with its distance from the search origin.
// DistanceKm is nil when no origin was known at filter time.
type FilteredResult struct {
	Listing
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Coordinates is a bare geographic position
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}
