package callrail

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"call-insights/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestClient(baseURL string) *Client {
	return NewClient(config.CallRailConfig{
		APIKey:    "key",
		AccountID: "ACC1",
		BaseURL:   baseURL,
	}, testLogger())
}

func TestFetchCalls_NotConfigured(t *testing.T) {
	c := NewClient(config.CallRailConfig{}, testLogger())
	if _, err := c.FetchCalls(context.Background(), time.Now(), time.Now(), ""); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFetchCalls_Paginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token token=key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.URL.Path != "/a/ACC1/calls.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		pg := r.URL.Query().Get("page")
		resp := map[string]any{
			"total_pages":   2,
			"has_next_page": pg == "1",
			"calls":         []map[string]any{{"id": "CAL-" + pg}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.FetchCalls(context.Background(), time.Now().AddDate(0, 0, -7), time.Now(), "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 calls across pages, got %d", len(got))
	}
	if got[0]["id"] != "CAL-1" || got[1]["id"] != "CAL-2" {
		t.Fatalf("unexpected page order: %v", got)
	}
}

func TestFetchCalls_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"has_next_page": false,
			"calls":         []map[string]any{{"id": "CAL1"}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.FetchCalls(context.Background(), time.Now(), time.Now(), "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 call after retry, got %d", len(got))
	}
	if hits.Load() < 2 {
		t.Fatalf("expected a retry, saw %d requests", hits.Load())
	}
}

func TestFetchCalls_BadBaseURLFails(t *testing.T) {
	c := newTestClient("http://bad url\x7f")
	got, err := c.FetchCalls(context.Background(), time.Now(), time.Now(), "")
	if err == nil {
		t.Fatalf("expected an error for an unbuildable request, got nil with %d calls", len(got))
	}
}

func TestFetchCalls_ClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.FetchCalls(context.Background(), time.Now(), time.Now(), ""); err == nil {
		t.Fatal("expected error on 401")
	}
	if hits.Load() != 1 {
		t.Fatalf("401 must not be retried, saw %d requests", hits.Load())
	}
}
