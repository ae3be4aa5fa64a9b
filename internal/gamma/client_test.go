package gamma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestListMarketsRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetries(3, time.Millisecond))

	markets, err := client.ListMarkets(context.Background(), nil, 100, 0)
	if err != nil {
		t.Fatalf("ListMarkets failed: %v", err)
	}
	if len(markets) != 1 {
		t.Errorf("got %d markets, want 1", len(markets))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3 (two retries)", got)
	}
}

func TestListMarketsDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetries(3, time.Millisecond))

	_, err := client.ListMarkets(context.Background(), nil, 100, 0)
	if err == nil {
		t.Fatal("ListMarkets succeeded, want error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (no retry on 404)", got)
	}
}

func TestListMarketsExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetries(2, time.Millisecond))

	_, err := client.ListMarkets(context.Background(), nil, 100, 0)
	if err == nil {
		t.Fatal("ListMarkets succeeded, want error after retry exhaustion")
	}
}

func TestListMarketsQueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "500" || q.Get("offset") != "1000" || q.Get("event_id") != "42" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	eventID := int64(42)
	if _, err := client.ListMarkets(context.Background(), &eventID, 500, 1000); err != nil {
		t.Fatalf("ListMarkets failed: %v", err)
	}
}
