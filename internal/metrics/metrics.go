package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all SeasonStay metrics
const namespace = "seasonstay"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// AppInfo exposes the running build as labels, value always 1
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Geocoding metrics
var (
	// GeocodingRequestsTotal counts outbound lookups by operation and outcome
	GeocodingRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocoding_requests_total",
			Help:      "Total number of geocoding requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// GeocodingLatency records upstream geocoding latency
	GeocodingLatency = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocoding_latency_seconds",
			Help:      "Geocoding upstream latency in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)
)

// Search metrics
var (
	// SearchSessionsActive is the number of live search sessions
	SearchSessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_sessions_active",
			Help:      "Number of live search sessions",
		},
	)

	// SearchResults records how many listings each filter pass returned
	SearchResults = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of listings returned by a filter pass",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)
)

// Catalog and favorites metrics
var (
	// CatalogListings is the current catalog size
	CatalogListings = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_listings",
			Help:      "Number of listings in the catalog",
		},
	)

	// CatalogRefreshTotal counts remote catalog refreshes by outcome
	CatalogRefreshTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_total",
			Help:      "Total number of remote catalog refreshes",
		},
		[]string{"outcome"},
	)

	// FavoritesWritesTotal counts favorites persistence attempts by outcome
	FavoritesWritesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "favorites_writes_total",
			Help:      "Total number of favorites set writes",
		},
		[]string{"outcome"},
	)
)
