package geo

import (
	"math"
)

const (
	// Earth radius in kilometers
	EarthRadiusKm = 6371.0
)

// Haversine calculates the great-circle distance between two points
// Returns distance in kilometers
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	// Convert to radians
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	// Haversine formula
	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// DistanceKm is Haversine over optional inputs. A nil or NaN coordinate yields
// +Inf, which every finite radius excludes.
func DistanceKm(lat1, lng1, lat2, lng2 *float64) float64 {
	for _, v := range []*float64{lat1, lng1, lat2, lng2} {
		if v == nil || math.IsNaN(*v) {
			return math.Inf(1)
		}
	}
	return Haversine(*lat1, *lng1, *lat2, *lng2)
}

// ValidCoordinate reports whether lat/lng is a real point on the globe
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// RoundKm rounds a distance to one decimal
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

// Location represents a geographic point
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// DefaultCenter is where the map rests when there is nothing to show.
var DefaultCenter = Location{
	Name:      "France",
	Latitude:  46.227638,
	Longitude: 2.213749,
}

// Reference cities used to label a device position when reverse lookup
// is unavailable. Covers the areas the seed catalog serves.
var FrenchCities = []Location{
	{Name: "Paris", Latitude: 48.8566, Longitude: 2.3522},
	{Name: "Versailles", Latitude: 48.8049, Longitude: 2.1204},
	{Name: "Saint-Denis", Latitude: 48.9362, Longitude: 2.3574},
	{Name: "Nanterre", Latitude: 48.8924, Longitude: 2.2071},
	{Name: "Créteil", Latitude: 48.7898, Longitude: 2.4545},
	{Name: "Melun", Latitude: 48.5421, Longitude: 2.6607},
	{Name: "Grenoble", Latitude: 45.1885, Longitude: 5.7245},
	{Name: "Saint-Ismier", Latitude: 45.2494, Longitude: 5.8300},
	{Name: "Chambéry", Latitude: 45.5646, Longitude: 5.9178},
	{Name: "Annecy", Latitude: 45.8992, Longitude: 6.1294},
	{Name: "Lyon", Latitude: 45.7640, Longitude: 4.8357},
	{Name: "Valence", Latitude: 44.9334, Longitude: 4.8924},
	{Name: "Avignon", Latitude: 43.9493, Longitude: 4.8055},
	{Name: "Montpellier", Latitude: 43.6108, Longitude: 3.8767},
	{Name: "Bordeaux", Latitude: 44.8378, Longitude: -0.5792},
	{Name: "Nantes", Latitude: 47.2184, Longitude: -1.5536},
	{Name: "Marseille", Latitude: 43.2965, Longitude: 5.3698},
	{Name: "Nice", Latitude: 43.7102, Longitude: 7.2620},
	{Name: "Toulouse", Latitude: 43.6047, Longitude: 1.4442},
	{Name: "Chamonix-Mont-Blanc", Latitude: 45.9237, Longitude: 6.8694},
}

// NearestCity finds the nearest reference city to a given location
func NearestCity(lat, lng float64) (Location, float64) {
	var nearest Location
	minDist := math.MaxFloat64

	for _, city := range FrenchCities {
		dist := Haversine(lat, lng, city.Latitude, city.Longitude)
		if dist < minDist {
			minDist = dist
			nearest = city
		}
	}

	return nearest, minDist
}
