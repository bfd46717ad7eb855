package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/you/bsgo-tracker/internal/core"
	"github.com/you/bsgo-tracker/internal/msgstate"
	"github.com/you/bsgo-tracker/internal/store"
)

type stubFetcher struct {
	snap core.Snapshot
	err  error
}

func (s *stubFetcher) Fetch(ctx context.Context, sourceURL string) (core.Snapshot, error) {
	return s.snap, s.err
}

type publishCall struct {
	url    string
	lastID string
	text   string
	image  int
}

type stubPublisher struct {
	calls []publishCall
	id    string
	err   error
}

func (s *stubPublisher) Publish(ctx context.Context, endpointURL, lastID string, image []byte, text string) (string, error) {
	s.calls = append(s.calls, publishCall{url: endpointURL, lastID: lastID, text: text, image: len(image)})
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

func testRunner(t *testing.T, fetcher Fetcher, pub Publisher, dests []core.Destination) (*Runner, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	hist, err := store.Open(filepath.Join(dir, "tracker.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })

	return &Runner{
		Destinations: dests,
		Fetcher:      fetcher,
		Store:        hist,
		State:        msgstate.NewFileStore(dir),
		Publisher:    pub,
		Interval:     time.Minute,
		Metrics:      NewMetrics(),
	}, hist
}

func snapshotFixture() core.Snapshot {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return core.Snapshot{
		Ts: ts,
		Records: []core.PlayerRecord{
			{Ts: ts, Faction: core.FactionColonial, PlayerID: "1", Name: "Alice", Level: 10},
			{Ts: ts, Faction: core.FactionCylon, PlayerID: "2", Name: "Bob", Level: 20},
		},
	}
}

func TestCycleCreatesThenEdits(t *testing.T) {
	dest := core.Destination{URL: "https://hook.test/a", SourceURL: "https://board.test", Label: "EU"}
	pub := &stubPublisher{id: "msg-1"}
	r, hist := testRunner(t, &stubFetcher{snap: snapshotFixture()}, pub, []core.Destination{dest})
	ctx := context.Background()

	r.RunCycle(ctx)
	if len(pub.calls) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.calls))
	}
	if pub.calls[0].lastID != "" {
		t.Fatalf("first publish should create, saw lastID %q", pub.calls[0].lastID)
	}
	if pub.calls[0].text != "[EU] Colonial Players: 1\nCylon Players: 1\nTotal Players: 2" {
		t.Fatalf("unexpected summary text: %q", pub.calls[0].text)
	}
	if pub.calls[0].image == 0 {
		t.Fatal("publish sent an empty image")
	}

	id, _ := r.State.Get(dest.URL)
	if id != "msg-1" {
		t.Fatalf("recorded id = %q, want msg-1", id)
	}

	r.RunCycle(ctx)
	if len(pub.calls) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(pub.calls))
	}
	if pub.calls[1].lastID != "msg-1" {
		t.Fatalf("second publish should edit msg-1, saw %q", pub.calls[1].lastID)
	}

	history, err := hist.ReadHistory(ctx)
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected one aggregate row per cycle, got %d", len(history))
	}
	n, _ := hist.CountPlayers(ctx)
	if n != 4 {
		t.Fatalf("expected 4 player records after two cycles, got %d", n)
	}
}

func TestCycleFetchFailureDegradesToEmptySnapshot(t *testing.T) {
	dest := core.Destination{URL: "https://hook.test/a", SourceURL: "https://board.test"}
	pub := &stubPublisher{id: "msg-1"}
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	r, hist := testRunner(t, fetcher, pub, []core.Destination{dest})
	ctx := context.Background()

	r.RunCycle(ctx)

	// The aggregate row is appended even for an empty cycle.
	history, err := hist.ReadHistory(ctx)
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 aggregate row, got %d", len(history))
	}
	if history[0].Colonial != 0 || history[0].Cylon != 0 {
		t.Fatalf("expected zero counts, got %+v", history[0])
	}
	n, _ := hist.CountPlayers(ctx)
	if n != 0 {
		t.Fatalf("no player records should persist on fetch failure, got %d", n)
	}

	// Publishing still happens so the message reflects the empty cycle.
	if len(pub.calls) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.calls))
	}
}

func TestCyclePublishFailureLeavesStateUntouched(t *testing.T) {
	dest := core.Destination{URL: "https://hook.test/a", SourceURL: "https://board.test"}
	r, _ := testRunner(t, &stubFetcher{snap: snapshotFixture()}, &stubPublisher{err: errors.New("503")}, []core.Destination{dest})
	ctx := context.Background()

	if err := r.State.Set(dest.URL, "old-id"); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	r.RunCycle(ctx)

	id, _ := r.State.Get(dest.URL)
	if id != "old-id" {
		t.Fatalf("state changed on failed publish: %q", id)
	}
}

func TestCycleIsolatesDestinationFailures(t *testing.T) {
	dests := []core.Destination{
		{URL: "https://hook.test/a", SourceURL: "https://board.test"},
		{URL: "https://hook.test/b", SourceURL: "https://board.test"},
	}
	pub := &stubPublisher{id: "msg-9"}
	// Fetch fails for every destination; both should still publish.
	r, _ := testRunner(t, &stubFetcher{err: errors.New("boom")}, pub, dests)

	r.RunCycle(context.Background())
	if len(pub.calls) != 2 {
		t.Fatalf("expected both destinations to publish, got %d calls", len(pub.calls))
	}
	if pub.calls[0].url == pub.calls[1].url {
		t.Fatal("expected distinct destination URLs")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	dest := core.Destination{URL: "https://hook.test/a", SourceURL: "https://board.test"}
	pub := &stubPublisher{id: "msg-1"}
	r, _ := testRunner(t, &stubFetcher{snap: snapshotFixture()}, pub, []core.Destination{dest})
	r.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if len(pub.calls) == 0 {
		t.Fatal("expected at least one publish before cancel")
	}
}
