// Package favorites keeps a client's saved listings. The whole set lives
// under one storage key and is rewritten on every toggle.
package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"seasonstay/internal/metrics"
	"seasonstay/internal/models"
)

var (
	// ErrStorageWrite is wrapped by every StorageWriteError
	ErrStorageWrite = errors.New("favorites could not be saved")
	// ErrUnknownListing means the id is neither in the catalog nor saved
	ErrUnknownListing = errors.New("unknown listing")
)

// StorageWriteError reports a failed write. The in-memory set already holds
// the change and storage catches up on the next successful write.
type StorageWriteError struct {
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to save favorites %q: %v", e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() []error { return []error{ErrStorageWrite, e.Err} }

// Storage is a durable key-value store. Get reports false for a key that
// was never written.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Catalog resolves listing ids to snapshot them
type Catalog interface {
	Get(id int64) (models.Listing, bool)
}

// Key returns the storage key of a client's favorites
func Key(clientID string) string {
	return "favorites:" + clientID
}

// Store is one client's favorites set
type Store struct {
	// writeMu orders toggles so storage receives sets in the order they
	// were computed
	writeMu sync.Mutex
	mu      sync.RWMutex
	key     string
	storage Storage
	catalog Catalog
	logger  zerolog.Logger
	now     func() time.Time
	items   []models.Favorite
}

// NewStore creates an empty store backed by storage under key
func NewStore(key string, storage Storage, catalog Catalog, logger zerolog.Logger) *Store {
	return &Store{
		key:     key,
		storage: storage,
		catalog: catalog,
		logger:  logger.With().Str("key", key).Logger(),
		now:     time.Now,
		items:   []models.Favorite{},
	}
}

// Load reads the stored set, replacing memory. A missing key is an empty
// set. An unreadable value is logged and treated as empty so the next
// toggle overwrites it.
func (s *Store) Load(ctx context.Context) ([]models.Favorite, error) {
	raw, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}

	items := []models.Favorite{}
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			s.logger.Warn().Err(err).Msg("discarding unreadable favorites")
			items = []models.Favorite{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	return slices.Clone(items), nil
}

// Toggle adds the listing if absent and removes it if present, then
// rewrites the whole set. On a write failure the new set is returned along
// with a *StorageWriteError.
func (s *Store) Toggle(ctx context.Context, id int64) ([]models.Favorite, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	idx := slices.IndexFunc(s.items, func(f models.Favorite) bool { return f.ID == id })
	if idx >= 0 {
		s.items = slices.Delete(slices.Clone(s.items), idx, idx+1)
	} else {
		listing, ok := s.catalog.Get(id)
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %d", ErrUnknownListing, id)
		}
		s.items = append(slices.Clone(s.items), models.NewFavorite(listing, s.now()))
	}
	items := slices.Clone(s.items)
	s.mu.Unlock()

	if err := s.persist(ctx, items); err != nil {
		return items, err
	}
	return items, nil
}

func (s *Store) persist(ctx context.Context, items []models.Favorite) error {
	data, err := json.Marshal(items)
	if err == nil {
		err = s.storage.Put(ctx, s.key, data)
	}
	if err != nil {
		metrics.FavoritesWritesTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Int("count", len(items)).Msg("favorites write failed")
		return &StorageWriteError{Key: s.key, Err: err}
	}
	metrics.FavoritesWritesTotal.WithLabelValues("success").Inc()
	return nil
}

// IsFavorite reports whether id is saved
func (s *Store) IsFavorite(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.items, func(f models.Favorite) bool { return f.ID == id })
}

// List returns the saved set in insertion order
func (s *Store) List() []models.Favorite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Stores hands out one loaded Store per client id
type Stores struct {
	mu      sync.Mutex
	storage Storage
	catalog Catalog
	logger  zerolog.Logger
	stores  map[string]*Store
}

// NewStores creates an empty set of stores sharing one storage backend
func NewStores(storage Storage, catalog Catalog, logger zerolog.Logger) *Stores {
	return &Stores{
		storage: storage,
		catalog: catalog,
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// For returns the client's store, loading it on first use
func (s *Stores) For(ctx context.Context, clientID string) (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[clientID]; ok {
		return st, nil
	}
	st := NewStore(Key(clientID), s.storage, s.catalog, s.logger)
	if _, err := st.Load(ctx); err != nil {
		return nil, err
	}
	s.stores[clientID] = st
	return st, nil
}
