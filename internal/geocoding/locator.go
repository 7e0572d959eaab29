package geocoding

import (
	"context"
	"fmt"

	"seasonstay/internal/geo"
	"seasonstay/internal/models"
)

// Locator yields the device's current position. Each call asks for a fresh
// fix; nothing is cached.
type Locator interface {
	CurrentPosition(ctx context.Context) (models.Coordinates, error)
}

// Position error codes reported by browsers (GeolocationPositionError)
const (
	PositionDenied      = 1
	PositionUnavailable = 2
	PositionTimeout     = 3
)

// PositionReport is what a browser posts after asking for its position:
// either coordinates or an error code.
type PositionReport struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	ErrorCode int      `json:"error_code,omitempty"`
}

// ClientLocator answers with the position reported by the client
type ClientLocator struct {
	report *PositionReport
}

// NewClientLocator wraps a report. A nil report means the client has no
// location capability.
func NewClientLocator(report *PositionReport) *ClientLocator {
	return &ClientLocator{report: report}
}

// CurrentPosition implements Locator
func (l *ClientLocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %v", ErrGeolocationTimeout, err)
	}
	r := l.report
	if r == nil {
		return models.Coordinates{}, ErrGeolocationUnavailable
	}
	switch r.ErrorCode {
	case 0:
	case PositionDenied:
		return models.Coordinates{}, ErrGeolocationDenied
	case PositionTimeout:
		return models.Coordinates{}, ErrGeolocationTimeout
	default:
		return models.Coordinates{}, ErrGeolocationUnavailable
	}
	if r.Latitude == nil || r.Longitude == nil || !geo.ValidCoordinate(*r.Latitude, *r.Longitude) {
		return models.Coordinates{}, fmt.Errorf("%w: position is not a valid coordinate", ErrInvalidInput)
	}
	return models.Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude}, nil
}

// StaticLocator answers with a configured position, for kiosks and tests
type StaticLocator struct {
	position *models.Coordinates
}

// NewStaticLocator creates a locator for position. A nil position behaves
// like a device without location capability.
func NewStaticLocator(position *models.Coordinates) *StaticLocator {
	return &StaticLocator{position: position}
}

// CurrentPosition implements Locator
func (l *StaticLocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %v", ErrGeolocationTimeout, err)
	}
	if l.position == nil {
		return models.Coordinates{}, ErrGeolocationUnavailable
	}
	return *l.position, nil
}
