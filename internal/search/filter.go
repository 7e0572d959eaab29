// Package search implements listing filtering and the search view state
// machine that drives it.
package search

import (
	"slices"

	"seasonstay/internal/geo"
	"seasonstay/internal/models"
)

// Filter returns the listings matching origin and f, in catalog order.
//
// With a nil origin the radius is ignored and distances are left unset, so
// listings without coordinates can still be browsed. With an origin, listings
// lacking valid coordinates never match.
func Filter(listings []models.Listing, origin *models.SearchOrigin, f models.SearchFilters) []models.FilteredResult {
	results := make([]models.FilteredResult, 0, len(listings))

	for _, l := range listings {
		var distance *float64
		if origin != nil {
			lat, lng, ok := l.Coordinates()
			if !ok || !geo.ValidCoordinate(lat, lng) {
				continue
			}
			d := geo.DistanceKm(l.Latitude, l.Longitude, &origin.Latitude, &origin.Longitude)
			if !(d <= f.RadiusKm) {
				continue
			}
			rounded := geo.RoundKm(d)
			distance = &rounded
		}

		if l.Price < f.PriceRange[0] || l.Price > f.PriceRange[1] {
			continue
		}
		if len(f.Types) > 0 && !slices.Contains(f.Types, l.Type) {
			continue
		}
		if len(f.Partners) > 0 && !slices.Contains(f.Partners, l.PartnerID) {
			continue
		}
		if !Available(l, f.Dates) {
			continue
		}

		results = append(results, models.FilteredResult{Listing: l, DistanceKm: distance})
	}

	return results
}

// Available reports whether a listing is free over the requested range.
// A nil range or a listing without unavailability windows is always
// available.
func Available(l models.Listing, dates *models.DateRange) bool {
	if dates == nil {
		return true
	}
	for _, window := range l.Unavailable {
		if window.Overlaps(*dates) {
			return false
		}
	}
	return true
}
