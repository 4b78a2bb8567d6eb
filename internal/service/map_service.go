package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/whisker-watch-go/internal/engine"
	"github.com/jengzang/whisker-watch-go/internal/metrics"
	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/repository"
	"github.com/jengzang/whisker-watch-go/internal/tiles"
)

// ErrSessionNotFound is returned for an unknown or expired session id
var ErrSessionNotFound = errors.New("map session not found")

const (
	outboxLimit = 256
	saveQueue   = 32
	saveTimeout = 3 * time.Second
)

// MarkerSource supplies the marker snapshot shown by every session
type MarkerSource interface {
	Markers(ctx context.Context) ([]models.Marker, error)
}

// MapServiceOptions configures a MapService
type MapServiceOptions struct {
	MinZoom, MaxZoom float64
	Basemaps         map[string]tiles.Basemap
	Style            string
	Fetcher          tiles.Fetcher
	CacheCapacity    int
	SessionTTL       time.Duration
	// StateKey is the key the viewport is persisted under
	StateKey string
	// DisableDriver leaves ticking to the caller through Advance
	DisableDriver bool
	Logger        *slog.Logger
}

// MapService owns map sessions. Each session is one engine guarded by a
// mutex and, unless disabled, driven by its own goroutine at the cadence
// the engine asks for.
type MapService struct {
	opts    MapServiceOptions
	markers MarkerSource
	store   repository.ViewportStore
	log     *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool

	// saveMu guards saves against a send after Close; never taken while holding mu
	saveMu      sync.RWMutex
	savesClosed bool
	saves       chan models.Viewport
	janitor     chan struct{}
	wg          sync.WaitGroup
}

type session struct {
	id string

	mu         sync.Mutex
	engine     *engine.Engine
	outbox     []models.Notification
	frame      []byte
	frameStale bool
	lastSeen   time.Time

	stop chan struct{}
	done chan struct{}
}

// NewMapService creates the service and starts its background workers.
// store may be nil, in which case the viewport is not persisted.
func NewMapService(opts MapServiceOptions, markers MarkerSource, store repository.ViewportStore) *MapService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 15 * time.Minute
	}
	if opts.StateKey == "" {
		opts.StateKey = "default"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &MapService{
		opts:     opts,
		markers:  markers,
		store:    store,
		log:      opts.Logger,
		now:      time.Now,
		sessions: make(map[string]*session),
		saves:    make(chan models.Viewport, saveQueue),
		janitor:  make(chan struct{}),
	}

	s.wg.Add(2)
	go s.saveLoop()
	go s.janitorLoop()
	return s
}

// Create starts a session showing the current markers at the persisted viewport
func (s *MapService) Create(ctx context.Context, opts models.SessionOptions) (*models.SessionState, error) {
	var markers []models.Marker
	if s.markers != nil {
		var err error
		if markers, err = s.markers.Markers(ctx); err != nil {
			return nil, fmt.Errorf("failed to load markers: %w", err)
		}
	}

	sess := &session{
		id:       uuid.NewString(),
		lastSeen: s.now(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	eng, err := engine.New(engine.Options{
		Width:         opts.Width,
		Height:        opts.Height,
		Mobile:        opts.Mobile,
		MinZoom:       s.opts.MinZoom,
		MaxZoom:       s.opts.MaxZoom,
		Viewport:      s.restoreViewport(ctx),
		Basemaps:      s.opts.Basemaps,
		Style:         s.opts.Style,
		Satellite:     opts.Satellite,
		Heatmap:       opts.Heatmap,
		Fetcher:       s.opts.Fetcher,
		CacheCapacity: s.opts.CacheCapacity,
		Callbacks:     s.callbacks(sess),
		Logger:        s.log.With("session", sess.id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create map engine: %w", err)
	}
	eng.SetMarkers(markers)
	sess.engine = eng

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		eng.Close()
		return nil, errors.New("map service is closed")
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()

	if s.opts.DisableDriver {
		close(sess.done)
	} else {
		go s.drive(sess)
	}
	s.log.Info("map_session_created", "session", sess.id, "width", opts.Width, "height", opts.Height, "markers", len(markers))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state(), nil
}

func (s *MapService) callbacks(sess *session) engine.Callbacks {
	return engine.Callbacks{
		OnMapClicked: func(lat, lng float64) {
			sess.notify(models.MapClicked(lat, lng))
		},
		OnMarkerClicked: func(id string) {
			sess.notify(models.MarkerClicked(id))
		},
		OnViewportChanged: func(v models.Viewport) {
			sess.notify(models.ViewportChanged(v))
			s.persist(v)
		},
	}
}

// notify is called by engine callbacks, with sess.mu held
func (sess *session) notify(n models.Notification) {
	if len(sess.outbox) >= outboxLimit {
		sess.outbox = sess.outbox[1:]
	}
	sess.outbox = append(sess.outbox, n)
}

func (sess *session) drain() []models.Notification {
	out := sess.outbox
	sess.outbox = nil
	return out
}

// state must be called with sess.mu held
func (sess *session) state() *models.SessionState {
	e := sess.engine
	size := e.Size()
	return &models.SessionState{
		ID:          sess.id,
		Width:       int(size.Width),
		Height:      int(size.Height),
		Viewport:    e.Viewport(),
		Basemap:     e.Basemap().Name,
		Heatmap:     e.HeatmapEnabled(),
		Satellite:   e.SatelliteEnabled(),
		SelectedID:  e.Selected(),
		Animating:   e.Animating(),
		Cadence:     e.Cadence().String(),
		NextFrameMs: e.NextFrameDelay().Milliseconds(),
		Markers:     len(e.Markers()),
		Clusters:    len(e.Clusters()),
	}
}

// restoreViewport loads the persisted viewport, falling back to the default
// for missing or malformed state
func (s *MapService) restoreViewport(ctx context.Context) models.Viewport {
	if s.store == nil {
		return models.DefaultViewport
	}
	data, err := s.store.Load(ctx, s.opts.StateKey)
	if errors.Is(err, repository.ErrStateNotFound) {
		return models.DefaultViewport
	}
	if err != nil {
		s.log.Warn("viewport_state_load_failed", "err", err)
		return models.DefaultViewport
	}
	minZoom, maxZoom := s.opts.MinZoom, s.opts.MaxZoom
	if minZoom == 0 && maxZoom == 0 {
		minZoom, maxZoom = engine.DefaultMinZoom, engine.DefaultMaxZoom
	}
	vp, err := models.DecodeViewportState(data, minZoom, maxZoom)
	if err != nil {
		s.log.Debug("viewport_state_discarded", "err", err)
		return models.DefaultViewport
	}
	return vp
}

// persist queues a viewport save without blocking the engine
func (s *MapService) persist(v models.Viewport) {
	if s.store == nil {
		return
	}
	s.saveMu.RLock()
	defer s.saveMu.RUnlock()
	if s.savesClosed {
		return
	}
	select {
	case s.saves <- v:
	default:
		metrics.ViewportSavesTotal.WithLabelValues("dropped").Inc()
	}
}

func (s *MapService) saveLoop() {
	defer s.wg.Done()
	for v := range s.saves {
		data, err := models.EncodeViewportState(v, s.now())
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			err = s.store.Save(ctx, s.opts.StateKey, data)
			cancel()
		}
		if err != nil {
			metrics.ViewportSavesTotal.WithLabelValues("error").Inc()
			s.log.Warn("viewport_state_save_failed", "err", err)
			continue
		}
		metrics.ViewportSavesTotal.WithLabelValues("ok").Inc()
	}
}

// drive ticks the engine at the cadence it asks for and renders when needed
func (s *MapService) drive(sess *session) {
	defer close(sess.done)
	last := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case now := <-timer.C:
			sess.mu.Lock()
			delay := sess.tick(now.Sub(last))
			sess.mu.Unlock()
			last = now
			timer.Reset(delay)
		}
	}
}

// tick must be called with sess.mu held
func (sess *session) tick(dt time.Duration) time.Duration {
	if sess.engine.Tick(dt) {
		sess.engine.Render()
		sess.frameStale = true
	}
	return sess.engine.NextFrameDelay()
}

func (s *MapService) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.mu.Lock()
	sess.lastSeen = s.now()
	sess.mu.Unlock()
	return sess, nil
}

// with runs fn on the session's engine under its lock
func (s *MapService) with(id string, fn func(sess *session) error) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

// State describes a session and drains its pending notifications
func (s *MapService) State(id string) (*models.SessionState, error) {
	var st *models.SessionState
	err := s.with(id, func(sess *session) error {
		st = sess.state()
		st.Notifications = sess.drain()
		return nil
	})
	return st, err
}

// Frame returns the current frame as PNG, rendering first if anything changed
func (s *MapService) Frame(id string) ([]byte, error) {
	var frame []byte
	err := s.with(id, func(sess *session) error {
		if sess.engine.NeedsRedraw() || sess.frame == nil {
			sess.engine.Render()
			sess.frameStale = true
		}
		if sess.frameStale {
			var buf bytes.Buffer
			if err := png.Encode(&buf, sess.engine.Surface()); err != nil {
				return fmt.Errorf("failed to encode frame: %w", err)
			}
			sess.frame = buf.Bytes()
			sess.frameStale = false
		}
		frame = sess.frame
		return nil
	})
	return frame, err
}

// Dispatch forwards input events to the engine and returns the
// notifications they, and anything since the last call, produced
func (s *MapService) Dispatch(id string, events []models.InputEvent) ([]models.Notification, error) {
	var out []models.Notification
	err := s.with(id, func(sess *session) error {
		e := sess.engine
		for _, ev := range events {
			switch ev.Type {
			case models.EventPointerDown:
				e.HandlePointerDown(ev.PointerID, ev.X, ev.Y)
			case models.EventPointerMove:
				e.HandlePointerMove(ev.PointerID, ev.X, ev.Y)
			case models.EventPointerUp:
				e.HandlePointerUp(ev.PointerID, ev.X, ev.Y)
			case models.EventWheel:
				e.HandleWheel(ev.X, ev.Y, ev.DeltaY)
			case models.EventKeyDown:
				e.HandleKeyDown(engine.KeyEvent{Key: ev.Key, Editable: ev.Editable})
			default:
				return fmt.Errorf("unknown event type %q", ev.Type)
			}
		}
		out = sess.drain()
		return nil
	})
	if out == nil && err == nil {
		out = []models.Notification{}
	}
	return out, err
}

// FlyTo starts an animated transition
func (s *MapService) FlyTo(id string, lat, lng, zoom float64) error {
	return s.with(id, func(sess *session) error {
		sess.engine.FlyTo(lat, lng, zoom)
		return nil
	})
}

// FitAll animates to the bounds of every marker. It reports false when the
// session has no markers.
func (s *MapService) FitAll(id string) (bool, error) {
	var ok bool
	err := s.with(id, func(sess *session) error {
		ok = sess.engine.FitAll()
		return nil
	})
	return ok, err
}

// SetLayers changes heatmap, satellite and selection; nil fields are untouched
func (s *MapService) SetLayers(id string, req models.LayersRequest) (*models.SessionState, error) {
	var st *models.SessionState
	err := s.with(id, func(sess *session) error {
		if req.Heatmap != nil {
			sess.engine.SetHeatmap(*req.Heatmap)
		}
		if req.Satellite != nil {
			sess.engine.SetSatellite(*req.Satellite)
		}
		if req.SelectedID != nil {
			sess.engine.SetSelected(*req.SelectedID)
		}
		st = sess.state()
		return nil
	})
	return st, err
}

// Advance ticks a session by dt. It is how callers drive sessions when the
// frame driver is disabled.
func (s *MapService) Advance(id string, dt time.Duration) error {
	return s.with(id, func(sess *session) error {
		sess.tick(dt)
		return nil
	})
}

// RefreshMarkers pushes the current marker snapshot to every session
func (s *MapService) RefreshMarkers(ctx context.Context) {
	if s.markers == nil {
		return
	}
	markers, err := s.markers.Markers(ctx)
	if err != nil {
		s.log.Error("marker_refresh_failed", "err", err)
		return
	}
	for _, sess := range s.snapshot() {
		sess.mu.Lock()
		sess.engine.SetMarkers(markers)
		sess.mu.Unlock()
	}
}

func (s *MapService) snapshot() []*session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Delete closes a session
func (s *MapService) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.closeSession(sess)
	s.log.Info("map_session_closed", "session", id)
	return nil
}

// Count returns the number of open sessions
func (s *MapService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup closes sessions idle for longer than the TTL and returns how many
func (s *MapService) Cleanup(now time.Time) int {
	var expired []*session
	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastSeen)
		sess.mu.Unlock()
		if idle > s.opts.SessionTTL {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		s.closeSession(sess)
		s.log.Info("map_session_expired", "session", sess.id)
	}
	return len(expired)
}

func (s *MapService) janitorLoop() {
	defer s.wg.Done()
	interval := s.opts.SessionTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.janitor:
			return
		case <-ticker.C:
			s.Cleanup(s.now())
		}
	}
}

func (s *MapService) closeSession(sess *session) {
	close(sess.stop)
	<-sess.done
	sess.mu.Lock()
	sess.engine.Close()
	sess.mu.Unlock()
	metrics.ActiveSessions.Dec()
}

// Close shuts every session down and flushes pending viewport saves
func (s *MapService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.closeSession(sess)
	}

	s.saveMu.Lock()
	s.savesClosed = true
	close(s.saves)
	s.saveMu.Unlock()
	close(s.janitor)
	s.wg.Wait()
}
