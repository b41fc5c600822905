package country

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// StorageKey is the durable storage key of the persisted selection.
const StorageKey = "selected_country"

var ErrNotResolved = errors.New("country selection is still resolving")

// GeoLookup resolves the caller's country from its network address.
type GeoLookup interface {
	Lookup(ctx context.Context) (string, error)
}

// Persistence is best-effort durable key/value storage.
type Persistence interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type State int

const (
	StateUninitialized State = iota
	StateResolving
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Selection is a snapshot of the active country.
type Selection struct {
	Country Country `json:"country"`
	Loading bool    `json:"loading"`
}

// Source records which resolution step picked the startup country.
type Source string

const (
	SourcePersisted Source = "persisted"
	SourceGeo       Source = "geo"
	SourceDefault   Source = "default"
	SourceUser      Source = "user"
)

type persistedSelection struct {
	Code       string    `json:"code"`
	SelectedAt time.Time `json:"selected_at"`
}

// SelectionStore owns the process-wide active country. Startup resolution
// runs once, in the background, from NewSelectionStore; Select is rejected
// until it has finished.
type SelectionStore struct {
	registry    *Registry
	geo         GeoLookup
	persist     Persistence
	defaultCode string
	geoTimeout  time.Duration

	mu        sync.RWMutex
	state     State
	current   Country
	source    Source
	observers map[int]func(Selection)
	nextObsID int

	selectMu sync.Mutex
	ready    chan struct{}
}

type SelectionOptions struct {
	// DefaultCode is selected when nothing is persisted and geolocation
	// fails. Unknown codes fall back to ALL.
	DefaultCode string
	GeoTimeout  time.Duration
}

func NewSelectionStore(ctx context.Context, reg *Registry, geo GeoLookup, persist Persistence, opts SelectionOptions) *SelectionStore {
	s := &SelectionStore{
		registry:    reg,
		geo:         geo,
		persist:     persist,
		defaultCode: opts.DefaultCode,
		geoTimeout:  opts.GeoTimeout,
		state:       StateUninitialized,
		observers:   make(map[int]func(Selection)),
		ready:       make(chan struct{}),
	}
	if s.geoTimeout <= 0 {
		s.geoTimeout = 5 * time.Second
	}
	s.current = s.defaultCountry()
	s.source = SourceDefault

	s.mu.Lock()
	s.state = StateResolving
	s.mu.Unlock()

	go s.resolve(ctx)

	return s
}

func (s *SelectionStore) defaultCountry() Country {
	return s.registry.ByCodeOr(s.defaultCode, s.registry.All())
}

// Default is the designated fallback country: the configured default, or ALL
// when that code is unknown.
func (s *SelectionStore) Default() Country {
	return s.defaultCountry().clone()
}

func (s *SelectionStore) resolve(ctx context.Context) {
	country, source := s.resolveCountry(ctx)

	s.mu.Lock()
	s.current = country
	s.source = source
	s.state = StateResolved
	s.mu.Unlock()

	slog.Info("Country selection resolved", "country", country.Code, "source", string(source))

	close(s.ready)
	s.notify()
}

func (s *SelectionStore) resolveCountry(ctx context.Context) (Country, Source) {
	if c, ok := s.readPersisted(ctx); ok {
		return c, SourcePersisted
	}

	if c, ok := s.lookupGeo(ctx); ok {
		s.writePersisted(ctx, c)
		return c, SourceGeo
	}

	return s.defaultCountry(), SourceDefault
}

func (s *SelectionStore) readPersisted(ctx context.Context) (Country, bool) {
	if s.persist == nil {
		return Country{}, false
	}

	raw, ok, err := s.persist.Get(ctx, StorageKey)
	if err != nil {
		slog.Warn("Persisted country unreadable", "key", StorageKey, "error", err)
		return Country{}, false
	}
	if !ok || raw == "" {
		return Country{}, false
	}

	var stored persistedSelection
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		slog.Warn("Persisted country malformed", "key", StorageKey, "error", err)
		return Country{}, false
	}

	c, err := s.registry.ByCode(stored.Code)
	if err != nil {
		slog.Debug("Persisted country no longer supported", "country", stored.Code)
		return Country{}, false
	}

	return c, true
}

func (s *SelectionStore) lookupGeo(ctx context.Context) (Country, bool) {
	if s.geo == nil {
		return Country{}, false
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.geoTimeout)
	defer cancel()

	code, err := s.geo.Lookup(lookupCtx)
	if err != nil {
		slog.Warn("Geolocation lookup failed", "error", err)
		return Country{}, false
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == AllCode {
		return Country{}, false
	}

	c, err := s.registry.ByCode(code)
	if err != nil {
		slog.Debug("Geolocated country not supported", "country", code)
		return Country{}, false
	}

	return c, true
}

func (s *SelectionStore) writePersisted(ctx context.Context, c Country) {
	if s.persist == nil {
		return
	}

	data, err := json.Marshal(persistedSelection{Code: c.Code, SelectedAt: time.Now().UTC()})
	if err != nil {
		slog.Warn("Failed to encode country selection", "country", c.Code, "error", err)
		return
	}

	if err := s.persist.Set(ctx, StorageKey, string(data)); err != nil {
		slog.Warn("Failed to persist country selection", "country", c.Code, "error", err)
	}
}

// Select makes c the active country and persists it. Persistence failures
// are logged; the selection stays in effect for the session regardless.
func (s *SelectionStore) Select(ctx context.Context, c Country) error {
	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	if s.State() != StateResolved {
		return ErrNotResolved
	}

	chosen, err := s.registry.ByCode(c.Code)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = chosen
	s.source = SourceUser
	s.mu.Unlock()

	s.writePersisted(ctx, chosen)
	s.notify()

	return nil
}

// SelectCode is Select by country code.
func (s *SelectionStore) SelectCode(ctx context.Context, code string) error {
	return s.Select(ctx, Country{Code: strings.ToUpper(strings.TrimSpace(code))})
}

func (s *SelectionStore) Current() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Selection{
		Country: s.current.clone(),
		Loading: s.state != StateResolved,
	}
}

func (s *SelectionStore) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SelectionStore) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Ready is closed once startup resolution has finished.
func (s *SelectionStore) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until resolution finishes or ctx is done.
func (s *SelectionStore) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn to be called after every change of the active
// country. The returned func removes the observer.
func (s *SelectionStore) Subscribe(fn func(Selection)) func() {
	s.mu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *SelectionStore) notify() {
	s.mu.RLock()
	sel := Selection{Country: s.current.clone(), Loading: s.state != StateResolved}
	observers := make([]func(Selection), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(sel)
	}
}
