// Package session keeps the live search views of browser clients. Each
// session is a search controller wired to a headless map.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"seasonstay/internal/geocoding"
	"seasonstay/internal/mapview"
	"seasonstay/internal/metrics"
	"seasonstay/internal/models"
	"seasonstay/internal/search"
)

// Session is one search view
type Session struct {
	ID         string
	Controller *search.Controller
	Map        *mapview.Recorder

	mounted  chan struct{}
	mu       sync.Mutex
	lastSeen time.Time
}

// Snapshot is what a client renders for a session
type Snapshot struct {
	ID string `json:"id"`
	search.State
	Viewport mapview.Viewport `json:"viewport"`
}

// Snapshot copies the session state
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:       s.ID,
		State:    s.Controller.State(),
		Viewport: s.Map.Viewport(),
	}
}

// Wait blocks until the initial positioning and every scheduled lookup
// have finished, or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.mounted:
	case <-ctx.Done():
		return ctx.Err()
	}
	done := make(chan struct{})
	go func() {
		s.Controller.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Options configures a Manager
type Options struct {
	Debounce    time.Duration
	IdleTimeout time.Duration
	MapWidth    int
	MapHeight   int
	// Device is used as the device position of sessions created without a
	// client-reported one. Nil means unavailable.
	Device *models.Coordinates
	Logger zerolog.Logger
}

// Manager owns all live sessions
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	listings search.Listings
	geocoder search.Geocoder
	opts     Options
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates an empty manager
func NewManager(listings search.Listings, geocoder search.Geocoder, opts Options) *Manager {
	if opts.MapWidth <= 0 {
		opts.MapWidth = 1024
	}
	if opts.MapHeight <= 0 {
		opts.MapHeight = 768
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	if opts.Debounce <= 0 {
		opts.Debounce = search.DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[string]*Session),
		listings: listings,
		geocoder: geocoder,
		opts:     opts,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Create starts a session and resolves its device position in the
// background. report is the browser's geolocation outcome; nil falls back
// to the configured device position.
func (m *Manager) Create(report *geocoding.PositionReport) *Session {
	id := uuid.NewString()
	logger := m.opts.Logger.With().Str("session_id", id).Logger()

	var locator geocoding.Locator = geocoding.NewStaticLocator(m.opts.Device)
	if report != nil {
		locator = geocoding.NewClientLocator(report)
	}

	rec := mapview.NewRecorder(m.opts.MapWidth, m.opts.MapHeight)
	ctrl := search.NewController(m.listings, m.geocoder,
		search.WithLocator(locator),
		search.WithDebounce(m.opts.Debounce),
		search.WithLogger(logger),
		search.WithListener(mapview.NewSynchronizer(rec, logger)),
	)

	s := &Session{
		ID:         id,
		Controller: ctrl,
		Map:        rec,
		mounted:    make(chan struct{}),
		lastSeen:   m.now(),
	}

	m.mu.Lock()
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()
	metrics.SearchSessionsActive.Set(float64(count))

	go func() {
		defer close(s.mounted)
		if err := ctrl.Mount(m.ctx); err != nil {
			logger.Debug().Err(err).Msg("session started without device position")
		}
	}()

	logger.Info().Bool("client_position", report != nil).Msg("search session created")
	return s
}

// Get returns a live session and marks it used
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

// Delete closes a session. It reports false for an unknown id.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Controller.Close()
	metrics.SearchSessionsActive.Set(float64(count))
	return true
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout and returns
// how many were closed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Controller.Close()
	}
	metrics.SearchSessionsActive.Set(float64(count))
	if len(expired) > 0 {
		m.opts.Logger.Info().Int("expired", len(expired)).Int("active", count).Msg("swept idle search sessions")
	}
	return len(expired)
}

// RefreshAll re-runs every session's filter, after a catalog reload
func (m *Manager) RefreshAll() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Controller.Refresh()
	}
}

// Close ends every session
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Controller.Close()
	}
	metrics.SearchSessionsActive.Set(0)
}
