package country

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeGeo struct {
	mu    sync.Mutex
	code  string
	err   error
	calls int
	block chan struct{}
}

func (f *fakeGeo) Lookup(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.code, f.err
}

func (f *fakeGeo) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePersistence struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
	sets   int
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{values: make(map[string]string)}
}

func (f *fakePersistence) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakePersistence) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

func (f *fakePersistence) storedCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.values[StorageKey]
	if !ok {
		return ""
	}
	var stored persistedSelection
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("Stored selection is not valid JSON: %v", err)
	}
	return stored.Code
}

func (f *fakePersistence) Sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func waitResolved(t *testing.T, s *SelectionStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Selection did not resolve: %v", err)
	}
}

func TestSelectionUsesPersistedChoiceWithoutGeoLookup(t *testing.T) {
	persist := newFakePersistence()
	persist.values[StorageKey] = `{"code":"DE","selected_at":"2026-01-02T03:04:05Z"}`
	geo := &fakeGeo{code: "FR"}

	store := NewSelectionStore(context.Background(), Default(), geo, persist, SelectionOptions{DefaultCode: AllCode})
	waitResolved(t, store)

	sel := store.Current()
	if sel.Country.Code != "DE" {
		t.Errorf("Expected persisted DE, got %s", sel.Country.Code)
	}
	if sel.Loading {
		t.Error("Expected loading to be false after resolution")
	}
	if geo.Calls() != 0 {
		t.Errorf("Expected no geolocation calls, got %d", geo.Calls())
	}
	if store.Source() != SourcePersisted {
		t.Errorf("Expected source persisted, got %s", store.Source())
	}
	if store.State() != StateResolved {
		t.Errorf("Expected state resolved, got %s", store.State())
	}
}

func TestSelectionFallsBackToGeoAndPersistsIt(t *testing.T) {
	persist := newFakePersistence()
	geo := &fakeGeo{code: "fr"}

	store := NewSelectionStore(context.Background(), Default(), geo, persist, SelectionOptions{DefaultCode: AllCode})
	waitResolved(t, store)

	if got := store.Current().Country.Code; got != "FR" {
		t.Errorf("Expected geolocated FR, got %s", got)
	}
	if got := persist.storedCode(t); got != "FR" {
		t.Errorf("Expected FR to be persisted, got %q", got)
	}
	if store.Source() != SourceGeo {
		t.Errorf("Expected source geo, got %s", store.Source())
	}
}

func TestSelectionGeoErrorUsesDefaultWithoutPersisting(t *testing.T) {
	persist := newFakePersistence()
	geo := &fakeGeo{err: errors.New("network down")}

	store := NewSelectionStore(context.Background(), Default(), geo, persist, SelectionOptions{DefaultCode: AllCode})
	waitResolved(t, store)

	sel := store.Current()
	if sel.Country.Code != AllCode {
		t.Errorf("Expected default %s, got %s", AllCode, sel.Country.Code)
	}
	if sel.Loading {
		t.Error("Expected loading to be false")
	}
	if persist.Sets() != 0 {
		t.Errorf("Expected no writes to persistence, got %d", persist.Sets())
	}
}

func TestSelectionUnsupportedGeoCountryUsesDefault(t *testing.T) {
	persist := newFakePersistence()
	geo := &fakeGeo{code: "US"}

	store := NewSelectionStore(context.Background(), Default(), geo, persist, SelectionOptions{DefaultCode: "DE"})
	waitResolved(t, store)

	if got := store.Current().Country.Code; got != "DE" {
		t.Errorf("Expected default DE, got %s", got)
	}
	if persist.Sets() != 0 {
		t.Errorf("Expected no writes to persistence, got %d", persist.Sets())
	}
}

func TestSelectionGeoTimeoutUsesDefault(t *testing.T) {
	geo := &fakeGeo{code: "FR", block: make(chan struct{})}
	defer close(geo.block)

	store := NewSelectionStore(context.Background(), Default(), geo, newFakePersistence(),
		SelectionOptions{DefaultCode: AllCode, GeoTimeout: 20 * time.Millisecond})
	waitResolved(t, store)

	if got := store.Current().Country.Code; got != AllCode {
		t.Errorf("Expected default after timeout, got %s", got)
	}
}

func TestSelectionPersistenceReadErrorFallsThrough(t *testing.T) {
	persist := newFakePersistence()
	persist.getErr = errors.New("disk unavailable")
	geo := &fakeGeo{code: "IT"}

	store := NewSelectionStore(context.Background(), Default(), geo, persist, SelectionOptions{DefaultCode: AllCode})
	waitResolved(t, store)

	if got := store.Current().Country.Code; got != "IT" {
		t.Errorf("Expected geolocated IT, got %s", got)
	}
}

func TestSelectionIgnoresMalformedOrUnknownPersistedValue(t *testing.T) {
	for _, raw := range []string{"not json", `{"code":"US"}`} {
		persist := newFakePersistence()
		persist.values[StorageKey] = raw
		geo := &fakeGeo{code: "ES"}

		store := NewSelectionStore(context.Background(), Default(), geo, persist, SelectionOptions{DefaultCode: AllCode})
		waitResolved(t, store)

		if got := store.Current().Country.Code; got != "ES" {
			t.Errorf("%q: expected geolocated ES, got %s", raw, got)
		}
	}
}

func TestSelectionUnknownDefaultFallsBackToAll(t *testing.T) {
	store := NewSelectionStore(context.Background(), Default(), nil, nil, SelectionOptions{DefaultCode: "XX"})
	waitResolved(t, store)

	if got := store.Current().Country.Code; got != AllCode {
		t.Errorf("Expected %s, got %s", AllCode, got)
	}
}

func TestSelectRejectedWhileResolving(t *testing.T) {
	geo := &fakeGeo{code: "FR", block: make(chan struct{})}
	store := NewSelectionStore(context.Background(), Default(), geo, newFakePersistence(), SelectionOptions{DefaultCode: AllCode})

	if !store.Current().Loading {
		t.Error("Expected loading while resolution is pending")
	}
	if err := store.SelectCode(context.Background(), "DE"); !errors.Is(err, ErrNotResolved) {
		t.Errorf("Expected ErrNotResolved, got %v", err)
	}

	close(geo.block)
	waitResolved(t, store)

	if got := store.Current().Country.Code; got != "FR" {
		t.Errorf("Expected FR after resolution, got %s", got)
	}
}

func TestSelectPersistsAndNotifies(t *testing.T) {
	persist := newFakePersistence()
	store := NewSelectionStore(context.Background(), Default(), &fakeGeo{err: errors.New("offline")}, persist, SelectionOptions{DefaultCode: AllCode})
	waitResolved(t, store)

	var mu sync.Mutex
	var notified []string
	unsubscribe := store.Subscribe(func(sel Selection) {
		mu.Lock()
		notified = append(notified, sel.Country.Code)
		mu.Unlock()
	})

	if err := store.SelectCode(context.Background(), "nl"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := store.Current().Country.Code; got != "NL" {
		t.Errorf("Expected NL, got %s", got)
	}
	if got := persist.storedCode(t); got != "NL" {
		t.Errorf("Expected NL persisted, got %q", got)
	}

	unsubscribe()
	if err := store.SelectCode(context.Background(), "BE"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 1 || notified[0] != "NL" {
		t.Errorf("Expected a single NL notification, got %v", notified)
	}
}

func TestSelectPersistenceFailureKeepsSelection(t *testing.T) {
	persist := newFakePersistence()
	persist.setErr = errors.New("read-only filesystem")
	store := NewSelectionStore(context.Background(), Default(), nil, persist, SelectionOptions{DefaultCode: AllCode})
	waitResolved(t, store)

	if err := store.SelectCode(context.Background(), "CH"); err != nil {
		t.Fatalf("Expected persistence failure to be swallowed, got: %v", err)
	}
	if got := store.Current().Country.Code; got != "CH" {
		t.Errorf("Expected CH to stay selected, got %s", got)
	}
}

func TestDefaultIgnoresSelection(t *testing.T) {
	store := NewSelectionStore(context.Background(), Default(), nil, nil, SelectionOptions{DefaultCode: "ES"})
	waitResolved(t, store)

	if err := store.SelectCode(context.Background(), "CZ"); err != nil {
		t.Fatal(err)
	}
	if got := store.Default().Code; got != "ES" {
		t.Errorf("Expected default ES, got %s", got)
	}

	unknown := NewSelectionStore(context.Background(), Default(), nil, nil, SelectionOptions{DefaultCode: "XX"})
	if got := unknown.Default().Code; got != AllCode {
		t.Errorf("Expected %s for an unknown default, got %s", AllCode, got)
	}
}

func TestSelectUnknownCountry(t *testing.T) {
	store := NewSelectionStore(context.Background(), Default(), nil, nil, SelectionOptions{DefaultCode: "FR"})
	waitResolved(t, store)

	if err := store.SelectCode(context.Background(), "US"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if got := store.Current().Country.Code; got != "FR" {
		t.Errorf("Expected FR to remain selected, got %s", got)
	}
}

func TestSubscribeReceivesResolution(t *testing.T) {
	geo := &fakeGeo{code: "AT", block: make(chan struct{})}
	store := NewSelectionStore(context.Background(), Default(), geo, nil, SelectionOptions{DefaultCode: AllCode})

	got := make(chan Selection, 1)
	store.Subscribe(func(sel Selection) { got <- sel })
	close(geo.block)

	select {
	case sel := <-got:
		if sel.Country.Code != "AT" || sel.Loading {
			t.Errorf("Expected resolved AT, got %+v", sel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a notification on resolution")
	}
}
