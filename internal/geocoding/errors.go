package geocoding

import "errors"

var (
	// ErrInvalidInput is returned for missing or malformed coordinates or queries
	ErrInvalidInput = errors.New("invalid input")

	// ErrGeolocationDenied is returned when the user refused to share a position
	ErrGeolocationDenied = errors.New("geolocation denied")

	// ErrGeolocationUnavailable is returned when no position source exists
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")

	// ErrGeolocationTimeout is returned when the position fix took too long
	ErrGeolocationTimeout = errors.New("geolocation timeout")

	// ErrNoResult is returned when a lookup matched nothing
	ErrNoResult = errors.New("no geocoding result")

	// ErrTransport is returned on network failure or a non-2xx response
	ErrTransport = errors.New("geocoding transport error")
)
