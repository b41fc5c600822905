package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Eurosari/test" {
			t.Errorf("Expected user agent Eurosari/test, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLookupFieldVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"ipapi.co", `{"ip":"1.2.3.4","country_code":"FR","country_name":"France"}`, "FR"},
		{"ip-api.com", `{"status":"success","countryCode":"de"}`, "DE"},
		{"country only", `{"country":" gb "}`, "GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, http.StatusOK, tt.body)
			client := New(server.URL, "Eurosari/test", time.Second)

			got, err := client.Lookup(context.Background())
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLookupFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusTooManyRequests, `{"error":true}`},
		{"service error", http.StatusOK, `{"error":true,"reason":"RateLimited"}`},
		{"malformed json", http.StatusOK, `not json`},
		{"missing code", http.StatusOK, `{"ip":"1.2.3.4"}`},
		{"full country name", http.StatusOK, `{"country":"France"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.status, tt.body)
			client := New(server.URL, "Eurosari/test", time.Second)

			if code, err := client.Lookup(context.Background()); err == nil {
				t.Errorf("Expected error, got code %q", code)
			}
		})
	}
}

func TestLookupTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, "", 20*time.Millisecond)

	start := time.Now()
	if _, err := client.Lookup(context.Background()); err == nil {
		t.Error("Expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected lookup to give up quickly, took %v", elapsed)
	}
}
