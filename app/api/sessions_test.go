package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/gktp0528-oss/europe-market-sub001/app/feed"
	"github.com/google/uuid"
)

type sessionResponse struct {
	ID      string `json:"id"`
	Search  string `json:"search"`
	Page    int    `json:"page"`
	HasMore bool   `json:"has_more"`
	Loading bool   `json:"loading"`
	Total   int    `json:"total"`
}

type sessionPageResponse struct {
	Page    pageResponse    `json:"page"`
	Session sessionResponse `json:"session"`
}

func createSession(t *testing.T, env *testEnv) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	return decode[sessionResponse](t, w).ID
}

func TestSessionPaging(t *testing.T) {
	env := setupTestEnv(t)
	id := createSession(t, env)

	if w := env.do(t, http.MethodPost, "/api/sessions/"+id+"/more", nil); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 before any feed is loaded, got %d", w.Code)
	}

	first := decode[sessionPageResponse](t, env.do(t, http.MethodGet, "/api/sessions/"+id+"/feed?category=used&country=FR", nil))
	if first.Session.Total != testPageSize || !first.Session.HasMore {
		t.Fatalf("Expected %d posts with more, got %d hasMore=%v", testPageSize, first.Session.Total, first.Session.HasMore)
	}

	more := decode[sessionPageResponse](t, env.do(t, http.MethodPost, "/api/sessions/"+id+"/more", nil))
	if len(more.Page.Posts) != 3 || more.Page.HasMore {
		t.Errorf("Expected a final page of 3, got %d hasMore=%v", len(more.Page.Posts), more.Page.HasMore)
	}
	if more.Session.Total != 13 || more.Session.Page != 1 {
		t.Errorf("Expected 13 accumulated posts on page 1, got %d on page %d", more.Session.Total, more.Session.Page)
	}

	refreshed := decode[sessionPageResponse](t, env.do(t, http.MethodGet, "/api/sessions/"+id+"/feed?category=used&country=FR", nil))
	if refreshed.Session.Total != testPageSize {
		t.Errorf("Expected refresh to replace the list, got %d posts", refreshed.Session.Total)
	}
}

func TestSessionDebouncedSearch(t *testing.T) {
	env := setupTestEnv(t)
	id := createSession(t, env)

	for _, term := range []string{"카", "카페", "카페 알바"} {
		w := env.do(t, http.MethodPost, "/api/sessions/"+id+"/search", map[string]string{"country": "ALL", "q": term})
		if w.Code != http.StatusAccepted {
			t.Fatalf("Expected status 202, got %d", w.Code)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		state := decode[sessionResponse](t, env.do(t, http.MethodGet, "/api/sessions/"+id, nil))
		if !state.Loading && state.Search != "" {
			if state.Search != "카페 알바" || state.Total != 1 {
				t.Errorf("Expected only the last search to apply, got %q with %d posts", state.Search, state.Total)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected debounced search to complete")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionErrors(t *testing.T) {
	env := setupTestEnv(t)

	if w := env.do(t, http.MethodGet, "/api/sessions/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	id := createSession(t, env)
	if w := env.do(t, http.MethodPost, "/api/sessions/"+id+"/search", map[string]string{"category": "cars"}); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown category, got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/sessions/"+id, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/sessions/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}
}

func TestSessionManagerSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewSessionManager(feed.NewMemoryStore(), time.Millisecond, 30*time.Minute)
	m.now = func() time.Time { return now }

	stale := m.Create()
	now = now.Add(20 * time.Minute)
	fresh := m.Create()

	if dropped := m.Sweep(now.Add(15 * time.Minute)); dropped != 1 {
		t.Errorf("Expected 1 idle session dropped, got %d", dropped)
	}
	if _, ok := m.Get(stale.ID); ok {
		t.Error("Expected idle session to be gone")
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("Expected active session to remain")
	}
	if stale.Context().Err() == nil {
		t.Error("Expected dropped session context to be cancelled")
	}
}

func TestSessionManagerRunSweepsOnTicks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewSessionManager(feed.NewMemoryStore(), time.Millisecond, time.Minute)
	m.now = func() time.Time { return now }
	m.Create()

	ticks := make(chan time.Time, 1)
	done := make(chan struct{})
	go func() {
		m.Run(ticks)
		close(done)
	}()

	ticks <- now.Add(5 * time.Minute)
	close(ticks)
	<-done

	if m.Len() != 0 {
		t.Errorf("Expected sessions to be swept on tick, got %d", m.Len())
	}
}
