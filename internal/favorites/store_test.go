package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasonstay/internal/catalog"
	"seasonstay/internal/db"
	"seasonstay/internal/models"
)

type flakyStorage struct {
	*MemoryStorage
	failPut bool
}

func (s *flakyStorage) Put(ctx context.Context, key string, value []byte) error {
	if s.failPut {
		return errors.New("quota exceeded")
	}
	return s.MemoryStorage.Put(ctx, key, value)
}

// slowStorage delays smaller sets longer, so an unordered writer would let
// an older set overwrite a newer one.
type slowStorage struct {
	*MemoryStorage
}

func (s slowStorage) Put(ctx context.Context, key string, value []byte) error {
	time.Sleep(time.Duration(max(0, 2000-len(value))) * time.Microsecond)
	return s.MemoryStorage.Put(ctx, key, value)
}

func ids(favs []models.Favorite) []int64 {
	out := make([]int64, 0, len(favs))
	for _, f := range favs {
		out = append(out, f.ID)
	}
	return out
}

func newStore(storage Storage) *Store {
	s := NewStore(Key("client-a"), storage, catalog.New(catalog.Seed()), zerolog.Nop())
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestStore_LoadEmpty(t *testing.T) {
	s := newStore(NewMemoryStorage())
	items, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.False(t, s.IsFavorite(1))
}

func TestStore_ToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	s := newStore(storage)
	_, err := s.Load(ctx)
	require.NoError(t, err)

	items, err := s.Toggle(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(items))
	assert.Equal(t, "Saint-Ismier", items[0].City)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), items[0].SavedAt)

	_, err = s.Toggle(ctx, 1)
	require.NoError(t, err)
	assert.True(t, s.IsFavorite(1))

	// a fresh store sees the persisted set
	reloaded := newStore(storage)
	items, err = reloaded.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids(items))

	items, err = reloaded.Toggle(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(items))
	assert.False(t, reloaded.IsFavorite(3))

	raw, ok, err := storage.Get(ctx, "favorites:client-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"id":1`)
	assert.NotContains(t, string(raw), `"id":3`)
}

func TestStore_ConcurrentTogglesStoreLatestSet(t *testing.T) {
	ctx := context.Background()
	storage := slowStorage{NewMemoryStorage()}
	s := newStore(storage)
	_, err := s.Load(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for id := int64(1); id <= 8; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Toggle(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	raw, ok, err := storage.Get(ctx, Key("client-a"))
	require.NoError(t, err)
	require.True(t, ok)
	var stored []models.Favorite
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Len(t, stored, 8)
	assert.Equal(t, ids(s.List()), ids(stored))
}

func TestStore_WriteFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	storage := &flakyStorage{MemoryStorage: NewMemoryStorage()}
	s := newStore(storage)
	_, err := s.Load(ctx)
	require.NoError(t, err)

	storage.failPut = true
	items, err := s.Toggle(ctx, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageWrite)
	var writeErr *StorageWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "favorites:client-a", writeErr.Key)
	assert.Equal(t, []int64{2}, ids(items))
	assert.True(t, s.IsFavorite(2))

	_, found, _ := storage.Get(ctx, "favorites:client-a")
	assert.False(t, found)

	// the next successful write catches storage up
	storage.failPut = false
	_, err = s.Toggle(ctx, 4)
	require.NoError(t, err)
	items, err = newStore(storage).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, ids(items))
}

func TestStore_UnknownListing(t *testing.T) {
	s := newStore(NewMemoryStorage())
	_, err := s.Toggle(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUnknownListing)
	assert.Empty(t, s.List())
}

func TestStore_RemovesSnapshotOfDroppedListing(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Put(ctx, Key("client-a"), []byte(`[{"id":77,"title":"Ancienne annonce","price":400}]`)))

	s := newStore(storage)
	items, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ancienne annonce", items[0].Title)

	items, err = s.Toggle(ctx, 77)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_UnreadableValueIsEmpty(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Put(ctx, Key("client-a"), []byte("{not json")))

	items, err := newStore(storage).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStores_OnePerClient(t *testing.T) {
	ctx := context.Background()
	stores := NewStores(NewMemoryStorage(), catalog.New(catalog.Seed()), zerolog.Nop())

	a, err := stores.For(ctx, "a")
	require.NoError(t, err)
	again, err := stores.For(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = a.Toggle(ctx, 5)
	require.NoError(t, err)

	b, err := stores.For(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, b.List())
}

func TestSQLiteStorage(t *testing.T) {
	ctx := context.Background()
	database, err := db.New(filepath.Join(t.TempDir(), "fav.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	storage := NewSQLiteStorage(database)
	s := newStore(storage)
	_, err = s.Load(ctx)
	require.NoError(t, err)
	_, err = s.Toggle(ctx, 8)
	require.NoError(t, err)

	items, err := newStore(storage).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{8}, ids(items))
}

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("SEASONSTAY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SEASONSTAY_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	storage := NewRedisStorage(addr, "", 0)
	t.Cleanup(func() { _ = storage.Close() })
	require.NoError(t, storage.Ping(ctx))

	key := Key("test-" + time.Now().Format("150405.000000"))
	_, found, err := storage.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, storage.Put(ctx, key, []byte(`[]`)))
	raw, found, err := storage.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "[]", string(raw))
}
