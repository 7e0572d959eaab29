package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"seasonstay/internal/api"
	"seasonstay/internal/catalog"
	"seasonstay/internal/config"
	"seasonstay/internal/db"
	"seasonstay/internal/favorites"
	"seasonstay/internal/geocoding"
	"seasonstay/internal/metrics"
	"seasonstay/internal/models"
	"seasonstay/internal/scheduler"
	"seasonstay/internal/session"
)

// app holds the wired services of a running server
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	db        *db.DB
	catalog   *catalog.Catalog
	refresher *catalog.Refresher
	places    *geocoding.Service
	favorites *favorites.Stores
	sessions  *session.Manager
	scheduler *scheduler.Scheduler
	handler   http.Handler
	closers   []func() error
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = database
	a.closers = append(a.closers, database.Close)

	if err := a.loadCatalog(ctx); err != nil {
		a.Close()
		return nil, err
	}

	storage, err := a.favoritesStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.favorites = favorites.NewStores(storage, a.catalog, logger)

	a.places = geocoding.FromConfig(cfg.Geocoding, logger)

	var device *models.Coordinates
	if cfg.Sessions.DeviceLatitude != nil && cfg.Sessions.DeviceLongitude != nil {
		device = &models.Coordinates{Latitude: *cfg.Sessions.DeviceLatitude, Longitude: *cfg.Sessions.DeviceLongitude}
	}
	a.sessions = session.NewManager(a.catalog, a.places, session.Options{
		Debounce:    cfg.Sessions.Debounce,
		IdleTimeout: cfg.Sessions.IdleTimeout,
		MapWidth:    cfg.Sessions.MapWidth,
		MapHeight:   cfg.Sessions.MapHeight,
		Device:      device,
		Logger:      logger,
	})

	if cfg.Catalog.RemoteURL != "" {
		remote := catalog.NewRemoteClient(cfg.Catalog.RemoteURL, cfg.Catalog.RemoteKey)
		a.refresher = catalog.NewRefresher(remote, database, a.catalog, logger)
	}

	a.scheduler = scheduler.New(logger)
	if err := a.schedule(); err != nil {
		a.sessions.Close()
		a.Close()
		return nil, err
	}

	a.handler = api.NewRouter(api.Deps{
		Catalog:        a.catalog,
		Places:         a.places,
		Favorites:      a.favorites,
		Sessions:       a.sessions,
		Logger:         logger,
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	return a, nil
}

// loadCatalog fills an empty database with the demo listings when allowed,
// then loads the catalog from it.
func (a *app) loadCatalog(ctx context.Context) error {
	count, err := a.db.CountListings(ctx)
	if err != nil {
		return fmt.Errorf("failed to count listings: %w", err)
	}
	if count == 0 && a.cfg.Catalog.SeedOnEmpty {
		n, err := catalog.SeedStore(ctx, a.db)
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		a.logger.Info().Int("listings", n).Msg("seeded empty catalog")
	}

	a.catalog = catalog.New(nil)
	if err := a.catalog.Reload(ctx, a.db); err != nil {
		return err
	}
	metrics.CatalogListings.Set(float64(a.catalog.Len()))
	a.logger.Info().Int("listings", a.catalog.Len()).Msg("catalog loaded")
	return nil
}

func (a *app) favoritesStorage(ctx context.Context) (favorites.Storage, error) {
	cfg := a.cfg.Favorites
	switch cfg.Backend {
	case "redis":
		rs := favorites.NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, fmt.Errorf("favorites redis unreachable: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		a.logger.Info().Str("addr", cfg.RedisAddr).Msg("favorites stored in redis")
		return rs, nil
	case "memory":
		a.logger.Warn().Msg("favorites kept in memory only")
		return favorites.NewMemoryStorage(), nil
	default:
		return favorites.NewSQLiteStorage(a.db), nil
	}
}

func (a *app) schedule() error {
	if a.refresher != nil && a.cfg.Catalog.RefreshSchedule != "" {
		if err := a.scheduler.Add("catalog-refresh", a.cfg.Catalog.RefreshSchedule, a.refreshCatalog); err != nil {
			return err
		}
	}
	return a.scheduler.Add("session-sweep", a.cfg.Sessions.SweepSchedule, func(context.Context) error {
		a.sessions.Sweep()
		return nil
	})
}

// refreshCatalog pulls the remote catalog and re-filters every open session
func (a *app) refreshCatalog(ctx context.Context) error {
	if err := a.refresher.Refresh(ctx); err != nil {
		metrics.CatalogRefreshTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.CatalogRefreshTotal.WithLabelValues("success").Inc()
	metrics.CatalogListings.Set(float64(a.catalog.Len()))
	a.sessions.RefreshAll()
	a.logger.Debug().
		Int("listings", a.catalog.Len()).
		Time("loaded_at", a.catalog.LoadedAt()).
		Msg("sessions refiltered")
	return nil
}

// Close releases storage in reverse order of opening
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
