package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"drain-audit/internal/cache"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchSnapshotsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != snapshotsPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Fatalf("missing accept header, got %q", accept)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"timestamp":      "2025-01-01T00:00:00Z",
				"levelsByVessel": map[string]float64{"V1": 120.5},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, nil, noopLogger())
	snapshots, err := c.FetchSnapshots(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Levels["V1"] != 120.5 {
		t.Fatalf("unexpected snapshots: %+v", snapshots)
	}
}

func TestFetchVesselsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "upstream down"})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, nil, noopLogger())
	if _, err := c.FetchVessels(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 502")
	}
}

func TestFetchTicketsFreshCacheSkipsRequest(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"date": "2025-01-01", "vesselId": "V1", "amountCollected": 40.0, "courierId": "C1"},
		})
	}))
	defer srv.Close()

	store := cache.NewTTL(time.Minute)
	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, store, noopLogger())

	for i := 0; i < 3; i++ {
		tickets, err := c.FetchTickets(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tickets) != 1 || tickets[0].AmountCollected != 40 {
			t.Fatalf("unexpected tickets: %+v", tickets)
		}
	}

	if calls.Load() != 1 {
		t.Fatalf("fresh cache should short-circuit, upstream called %d times", calls.Load())
	}
}

func TestFetchSnapshotsStaleFallback(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"timestamp": "2025-01-01T00:00:00Z", "levelsByVessel": map[string]float64{"V1": 10}},
		})
	}))
	defer srv.Close()

	// Zero TTL: every entry is stale the moment it lands.
	store := cache.NewTTL(0)
	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, store, noopLogger())

	if _, err := c.FetchSnapshots(context.Background()); err != nil {
		t.Fatalf("priming fetch failed: %v", err)
	}

	failing.Store(true)
	snapshots, err := c.FetchSnapshots(context.Background())
	if err != nil {
		t.Fatalf("stale fallback should mask the failure: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Levels["V1"] != 10 {
		t.Fatalf("unexpected stale snapshots: %+v", snapshots)
	}
}

func TestFetchSnapshotsNoFallbackPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := cache.NewTTL(time.Minute)
	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, store, noopLogger())

	if _, err := c.FetchSnapshots(context.Background()); err == nil {
		t.Fatal("expected error with an empty cache")
	}
}

func TestParseHTTPErrorVariants(t *testing.T) {
	if err := parseHTTPError(500, []byte(`{"message":"boom"}`)); err == nil {
		t.Fatal("expected error")
	}
	if err := parseHTTPError(500, []byte(`{"title":"Bad Gateway"}`)); err == nil {
		t.Fatal("expected error")
	}
	if err := parseHTTPError(500, []byte("plain text")); err == nil {
		t.Fatal("expected error")
	}
	if err := parseHTTPError(500, nil); err == nil {
		t.Fatal("expected error")
	}
}
