package geocoding

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"seasonstay/internal/config"
	"seasonstay/internal/metrics"
	"seasonstay/internal/models"
)

// Searcher resolves free text to place suggestions
type Searcher interface {
	GeocodeAddress(ctx context.Context, query string) ([]models.PlaceSuggestion, error)
}

// Reverser resolves a coordinate to an address
type Reverser interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*models.PlaceDetails, error)
}

// Service fronts the place search and reverse lookup clients with logging
// and metrics. It issues exactly one upstream call per method call.
type Service struct {
	searcher Searcher
	reverser Reverser
	logger   zerolog.Logger
}

// NewService creates a geocoding service
func NewService(searcher Searcher, reverser Reverser, logger zerolog.Logger) *Service {
	return &Service{
		searcher: searcher,
		reverser: reverser,
		logger:   logger.With().Str("component", "geocoding").Logger(),
	}
}

// FromConfig builds the service used by the commands: Nominatim for search,
// OpenCage for reverse lookups when a key is configured and Nominatim
// otherwise.
func FromConfig(cfg config.GeocodingConfig, logger zerolog.Logger) *Service {
	nominatim := NewNominatimClient(cfg.NominatimURL,
		WithUserAgent(cfg.UserAgent),
		WithRateLimit(cfg.RateLimit),
		WithFeatureType(cfg.FeatureType),
	)

	var reverser Reverser = nominatim
	if cfg.OpenCageKey != "" {
		reverser = NewOpenCageClient(cfg.OpenCageURL, cfg.OpenCageKey, nil)
	} else {
		logger.Warn().Msg("OPENCAGE_API_KEY not set; reverse geocoding uses Nominatim")
	}
	return NewService(nominatim, reverser, logger)
}

// GeocodeAddress implements Searcher
func (s *Service) GeocodeAddress(ctx context.Context, query string) ([]models.PlaceSuggestion, error) {
	start := time.Now()
	results, err := s.searcher.GeocodeAddress(ctx, query)
	s.observe("search", start, err)

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("query", query).
			Dur("latency", time.Since(start)).
			Msg("place search failed")
		return nil, err
	}

	s.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("place search")
	return results, nil
}

// ReverseGeocode implements Reverser
func (s *Service) ReverseGeocode(ctx context.Context, lat, lon float64) (*models.PlaceDetails, error) {
	start := time.Now()
	details, err := s.reverser.ReverseGeocode(ctx, lat, lon)
	s.observe("reverse", start, err)

	if err != nil {
		s.logger.Warn().
			Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("reverse geocoding failed")
		return nil, err
	}

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("city", details.City).
		Msg("reverse geocoding")
	return details, nil
}

func (s *Service) observe(operation string, start time.Time, err error) {
	metrics.GeocodingRequestsTotal.WithLabelValues(operation, Outcome(err)).Inc()
	if err == nil || errors.Is(err, ErrNoResult) || errors.Is(err, ErrTransport) {
		metrics.GeocodingLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// Outcome labels an error for metrics and logs
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNoResult):
		return "no_result"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrGeolocationDenied):
		return "denied"
	case errors.Is(err, ErrGeolocationUnavailable):
		return "unavailable"
	case errors.Is(err, ErrGeolocationTimeout):
		return "timeout"
	default:
		return "error"
	}
}
