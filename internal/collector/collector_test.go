package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pmdata/polymarket-data/internal/book"
	"github.com/pmdata/polymarket-data/internal/store"
)

type fakeTargets struct {
	targets store.Targets
	err     error
	calls   int
}

func (f *fakeTargets) TrackedTargets(ctx context.Context) (store.Targets, error) {
	f.calls++
	return f.targets, f.err
}

type fakeFetcher struct {
	books map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Book(ctx context.Context, tokenID string) (json.RawMessage, error) {
	f.calls = append(f.calls, tokenID)
	if err, ok := f.errs[tokenID]; ok {
		return nil, err
	}
	return json.RawMessage(f.books[tokenID]), nil
}

type sinkCall struct {
	tokenID  string
	marketID *int64
	ts       time.Time
	endTime  *time.Time
}

type fakeSink struct {
	calls []sinkCall
	err   error
}

func (f *fakeSink) InsertSnapshotAndFeatures(ctx context.Context, marketID *int64, ts time.Time, snap book.Snapshot, endTime *time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, sinkCall{snap.TokenID, marketID, ts, endTime})
	return nil
}

func targetsFor(tokens ...string) store.Targets {
	t := store.Targets{
		TokenToMarket: make(map[string]int64),
		MarketEndTime: make(map[int64]*time.Time),
	}
	for i, tok := range tokens {
		t.Tokens = append(t.Tokens, tok)
		t.TokenToMarket[tok] = int64(i + 1)
	}
	return t
}

func TestRunSingleIteration(t *testing.T) {
	end := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	targets := targetsFor("a", "b", "c")
	targets.MarketEndTime[1] = &end

	fetcher := &fakeFetcher{
		books: map[string]string{
			"a": `{"bids":[["0.4","10"]],"asks":[["0.6","30"]]}`,
			"b": `{}`,
			"c": `{"bids":[{"price":"0.1","size":"5"}],"asks":[]}`,
		},
	}
	sink := &fakeSink{}

	c := New(&fakeTargets{targets: targets}, fetcher, sink,
		Config{BatchSize: 2, TopN: 10, Iterations: 1}, nil)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fetcher.calls) != 3 {
		t.Errorf("fetch calls = %d, want 3", len(fetcher.calls))
	}
	// b's empty book is fetched but never persisted
	if len(sink.calls) != 2 {
		t.Fatalf("sink calls = %d, want 2", len(sink.calls))
	}
	if sink.calls[0].tokenID != "a" || sink.calls[1].tokenID != "c" {
		t.Errorf("persisted tokens = %s, %s", sink.calls[0].tokenID, sink.calls[1].tokenID)
	}
	if sink.calls[0].endTime == nil || !sink.calls[0].endTime.Equal(end) {
		t.Errorf("endTime for a = %v, want %v", sink.calls[0].endTime, end)
	}
	if !sink.calls[0].ts.Equal(sink.calls[1].ts) {
		t.Error("rows of one iteration must share a timestamp")
	}
}

func TestRunSkipsFailedFetches(t *testing.T) {
	fetcher := &fakeFetcher{
		books: map[string]string{"ok": `{"bids":[["0.5","1"]],"asks":[]}`},
		errs:  map[string]error{"bad": errors.New("boom")},
	}
	sink := &fakeSink{}

	c := New(&fakeTargets{targets: targetsFor("bad", "ok")}, fetcher, sink,
		Config{BatchSize: 10, TopN: 5, Iterations: 1}, nil)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.calls) != 1 || sink.calls[0].tokenID != "ok" {
		t.Errorf("sink calls = %v, want just ok", sink.calls)
	}
}

func TestRunPropagatesTargetError(t *testing.T) {
	c := New(&fakeTargets{err: errors.New("db down")}, &fakeFetcher{}, &fakeSink{},
		Config{Iterations: 1}, nil)
	if err := c.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded, want target source error")
	}
}

func TestRunIdlesWithoutTargetsUntilCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	src := &fakeTargets{targets: store.Targets{}}
	c := New(src, &fakeFetcher{}, &fakeSink{},
		Config{LoopInterval: time.Millisecond, Iterations: 1}, nil)

	err := c.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run error = %v, want deadline exceeded", err)
	}
	// The empty-target sleep is at least one second even with a short
	// loop interval, so a 50ms budget allows exactly one load: the loop
	// idles instead of spinning on the target source.
	if src.calls != 1 {
		t.Errorf("target loads = %d, want 1 before the idle sleep", src.calls)
	}
}

func TestRunBoundedIterations(t *testing.T) {
	fetcher := &fakeFetcher{books: map[string]string{
		"a": `{"bids":[["0.5","1"]],"asks":[]}`,
	}}
	sink := &fakeSink{}

	c := New(&fakeTargets{targets: targetsFor("a")}, fetcher, sink,
		Config{BatchSize: 1, TopN: 5, Iterations: 3, LoopInterval: time.Millisecond}, nil)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.calls) != 3 {
		t.Errorf("sink calls = %d, want 3", len(sink.calls))
	}
}

func TestRunLogsBookShapeOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fetcher := &fakeFetcher{books: map[string]string{
		"a": `{"bids":[["0.5","1"]],"asks":[]}`,
		"b": `{"bids":[["0.3","2"]],"asks":[]}`,
	}}

	c := New(&fakeTargets{targets: targetsFor("a", "b")}, fetcher, &fakeSink{},
		Config{BatchSize: 1, TopN: 5, Iterations: 3, LoopInterval: time.Millisecond}, logger)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := strings.Count(buf.String(), "first book shape"); got != 1 {
		t.Errorf("shape debug logged %d times across 3 iterations, want 1", got)
	}
}

func TestChunks(t *testing.T) {
	xs := []string{"a", "b", "c", "d", "e"}
	var got [][]string
	for batch := range chunks(xs, 2) {
		got = append(got, batch)
	}
	want := "[[a b] [c d] [e]]"
	if fmt.Sprint(got) != want {
		t.Errorf("chunks = %v, want %s", got, want)
	}
}
