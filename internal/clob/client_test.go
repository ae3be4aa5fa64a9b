package clob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestBookFetchesRawPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token_id"); got != "tok-123" {
			t.Errorf("token_id = %q, want tok-123", got)
		}
		w.Write([]byte(`{"bids":[["0.5","10"]],"asks":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRateLimit(1000, 10))

	raw, err := client.Book(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if string(raw) != `{"bids":[["0.5","10"]],"asks":[]}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestBookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL,
		WithRetries(3, time.Millisecond),
		WithRateLimit(1000, 10),
	)

	raw, err := client.Book(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if string(raw) != `{}` {
		t.Errorf("raw = %s, want {}", raw)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestBookSurfacesExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL,
		WithRetries(1, time.Millisecond),
		WithRateLimit(1000, 10),
	)

	if _, err := client.Book(context.Background(), "tok"); err == nil {
		t.Fatal("Book succeeded, want error after retry exhaustion")
	}
}

func TestBookHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL,
		WithRetries(5, 50*time.Millisecond),
		WithRateLimit(1000, 10),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := client.Book(ctx, "tok"); err == nil {
		t.Fatal("Book succeeded, want context error")
	}
}
