// Package config loads the service configuration. Values come from the
// defaults, then an optional YAML file named by CONFIG_PATH, then .env, then
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Logging     LoggingConfig   `yaml:"logging"`
	Geocoding   GeocodingConfig `yaml:"geocoding"`
	Favorites   FavoritesConfig `yaml:"favorites"`
	Catalog     CatalogConfig   `yaml:"catalog"`
	Sessions    SessionsConfig  `yaml:"sessions"`
	Environment string          `yaml:"environment" validate:"oneof=development test production"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type GeocodingConfig struct {
	NominatimURL string  `yaml:"nominatim_url" validate:"required,url"`
	UserAgent    string  `yaml:"user_agent" validate:"required"`
	RateLimit    float64 `yaml:"rate_limit" validate:"gte=0"`
	FeatureType  string  `yaml:"feature_type"`
	OpenCageURL  string  `yaml:"opencage_url" validate:"required,url"`
	OpenCageKey  string  `yaml:"opencage_key"`
}

type FavoritesConfig struct {
	Backend       string `yaml:"backend" validate:"oneof=sqlite redis memory"`
	RedisAddr     string `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`
}

type CatalogConfig struct {
	RemoteURL       string `yaml:"remote_url" validate:"omitempty,url"`
	RemoteKey       string `yaml:"remote_key"`
	RefreshSchedule string `yaml:"refresh_schedule"`
	SeedOnEmpty     bool   `yaml:"seed_on_empty"`
}

type SessionsConfig struct {
	Debounce        time.Duration `yaml:"debounce"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	SweepSchedule   string        `yaml:"sweep_schedule" validate:"required"`
	DeviceLatitude  *float64      `yaml:"device_latitude" validate:"omitempty,latitude"`
	DeviceLongitude *float64      `yaml:"device_longitude" validate:"omitempty,longitude"`
	MapWidth        int           `yaml:"map_width" validate:"gt=0"`
	MapHeight       int           `yaml:"map_height" validate:"gt=0"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "data/seasonstay.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Geocoding: GeocodingConfig{
			NominatimURL: "https://nominatim.openstreetmap.org",
			UserAgent:    "SeasonStay/1.0",
			RateLimit:    1,
			FeatureType:  "settlement",
			OpenCageURL:  "https://api.opencagedata.com",
		},
		Favorites: FavoritesConfig{
			Backend: "sqlite",
		},
		Catalog: CatalogConfig{
			RefreshSchedule: "@every 1h",
			SeedOnEmpty:     true,
		},
		Sessions: SessionsConfig{
			Debounce:      400 * time.Millisecond,
			IdleTimeout:   30 * time.Minute,
			SweepSchedule: "@every 1m",
			MapWidth:      1024,
			MapHeight:     768,
		},
		Environment: "development",
	}
}

// Load builds the configuration. A missing .env or a CONFIG_PATH pointing
// at a missing file is not an error.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	collect(getEnvInt("PORT", &cfg.Server.Port))
	cfg.Server.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	collect(getEnvDuration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout))

	cfg.Database.Path = getEnv("DATABASE_PATH", cfg.Database.Path)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Geocoding.NominatimURL = getEnv("NOMINATIM_URL", cfg.Geocoding.NominatimURL)
	cfg.Geocoding.UserAgent = getEnv("NOMINATIM_USER_AGENT", cfg.Geocoding.UserAgent)
	collect(getEnvFloat("NOMINATIM_RATE_LIMIT", &cfg.Geocoding.RateLimit))
	cfg.Geocoding.FeatureType = getEnv("NOMINATIM_FEATURE_TYPE", cfg.Geocoding.FeatureType)
	cfg.Geocoding.OpenCageURL = getEnv("OPENCAGE_URL", cfg.Geocoding.OpenCageURL)
	cfg.Geocoding.OpenCageKey = getEnv("OPENCAGE_API_KEY", cfg.Geocoding.OpenCageKey)

	cfg.Favorites.Backend = getEnv("FAVORITES_BACKEND", cfg.Favorites.Backend)
	cfg.Favorites.RedisAddr = getEnv("REDIS_ADDR", cfg.Favorites.RedisAddr)
	cfg.Favorites.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Favorites.RedisPassword)
	collect(getEnvInt("REDIS_DB", &cfg.Favorites.RedisDB))

	cfg.Catalog.RemoteURL = getEnv("CATALOG_REMOTE_URL", cfg.Catalog.RemoteURL)
	cfg.Catalog.RemoteKey = getEnv("CATALOG_REMOTE_KEY", cfg.Catalog.RemoteKey)
	cfg.Catalog.RefreshSchedule = getEnv("CATALOG_REFRESH_SCHEDULE", cfg.Catalog.RefreshSchedule)
	collect(getEnvBool("CATALOG_SEED_ON_EMPTY", &cfg.Catalog.SeedOnEmpty))

	collect(getEnvDuration("SEARCH_DEBOUNCE", &cfg.Sessions.Debounce))
	collect(getEnvDuration("SESSION_IDLE_TIMEOUT", &cfg.Sessions.IdleTimeout))
	cfg.Sessions.SweepSchedule = getEnv("SESSION_SWEEP_SCHEDULE", cfg.Sessions.SweepSchedule)
	collect(getEnvFloatPtr("DEVICE_LATITUDE", &cfg.Sessions.DeviceLatitude))
	collect(getEnvFloatPtr("DEVICE_LONGITUDE", &cfg.Sessions.DeviceLongitude))

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	return errors.Join(errs...)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if (cfg.Sessions.DeviceLatitude == nil) != (cfg.Sessions.DeviceLongitude == nil) {
		return fmt.Errorf("invalid configuration: DEVICE_LATITUDE and DEVICE_LONGITUDE must be set together")
	}
	if cfg.Environment == "production" && len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*" {
		return fmt.Errorf("invalid configuration: CORS_ALLOWED_ORIGINS must be restricted in production")
	}
	return nil
}

// Addr is the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func getEnvFloat(key string, dst *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func getEnvFloatPtr(key string, dst **float64) error {
	var v float64
	if os.Getenv(key) == "" {
		return nil
	}
	if err := getEnvFloat(key, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func getEnvBool(key string, dst *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func getEnvDuration(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
