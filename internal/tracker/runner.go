package tracker

import (
	"context"
	"log"
	"time"

	"github.com/you/bsgo-tracker/internal/core"
	"github.com/you/bsgo-tracker/internal/msgstate"
	"github.com/you/bsgo-tracker/internal/render"
	"github.com/you/bsgo-tracker/internal/stats"
)

// Fetcher retrieves one leaderboard snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) (core.Snapshot, error)
}

// HistoryStore is the append-only persistence the pipeline writes through.
type HistoryStore interface {
	AppendSnapshot(ctx context.Context, snap core.Snapshot) error
	AppendAggregate(ctx context.Context, row core.AggregateRow) error
	ReadHistory(ctx context.Context) ([]core.AggregateRow, error)
}

// Publisher sends one image and summary to a webhook endpoint, creating or
// editing depending on lastID.
type Publisher interface {
	Publish(ctx context.Context, endpointURL, lastID string, image []byte, text string) (string, error)
}

// Runner drives the fixed-interval scrape/publish loop across all configured
// destinations. Destinations run strictly sequentially within a cycle, and a
// failure in one never aborts the others.
type Runner struct {
	Destinations []core.Destination
	Fetcher      Fetcher
	Store        HistoryStore
	State        msgstate.Store
	Publisher    Publisher
	Interval     time.Duration
	Metrics      *Metrics

	FetchTimeout   time.Duration
	PublishTimeout time.Duration
}

// Run executes one cycle immediately, then one per interval until ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		log.Printf("tracker: running update at %s", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
		r.RunCycle(ctx)
		log.Printf("tracker: next update in %s", r.Interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCycle walks all destinations once. Errors are contained per
// destination: logged, counted, never propagated.
func (r *Runner) RunCycle(ctx context.Context) {
	if r.Metrics != nil {
		r.Metrics.cyclesTotal.Inc()
	}
	for _, dest := range r.Destinations {
		if ctx.Err() != nil {
			return
		}
		if err := r.runDestination(ctx, dest); err != nil {
			log.Printf("tracker: [%s] cycle failed: %v", destName(dest), err)
		}
	}
}

// runDestination is the full per-destination pipeline:
// fetch -> persist -> aggregate -> render -> publish -> record id.
func (r *Runner) runDestination(ctx context.Context, dest core.Destination) error {
	snap := r.fetch(ctx, dest)

	counts := stats.Count(snap)
	r.persist(ctx, dest, snap, counts)

	history, err := r.Store.ReadHistory(ctx)
	if err != nil {
		// Rendering proceeds with whatever history was readable.
		log.Printf("tracker: [%s] read history: %v", destName(dest), err)
		if r.Metrics != nil {
			r.Metrics.persistErrors.Inc()
		}
		history = nil
	}

	image, err := render.Combined(snap, history, dest.Label)
	if err != nil {
		if r.Metrics != nil {
			r.Metrics.renderErrors.Inc()
		}
		log.Printf("tracker: [%s] render: %v", destName(dest), err)
		return nil
	}

	r.publish(ctx, dest, image, stats.SummaryText(counts, dest.Label))
	return nil
}

func (r *Runner) fetch(ctx context.Context, dest core.Destination) core.Snapshot {
	fetchCtx := ctx
	if r.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.FetchTimeout)
		defer cancel()
	}

	snap, err := r.Fetcher.Fetch(fetchCtx, dest.SourceURL)
	if err != nil {
		// A failed fetch degrades to an empty snapshot for this cycle.
		if r.Metrics != nil {
			r.Metrics.fetchErrors.Inc()
		}
		log.Printf("tracker: [%s] fetch: %v", destName(dest), err)
		return core.Snapshot{Ts: time.Now().UTC()}
	}
	if snap.Empty() {
		log.Printf("tracker: [%s] warning: no data fetched", destName(dest))
	}
	return snap
}

// persist appends the snapshot records and exactly one aggregate row. Both
// writes are best effort; the cycle continues on failure.
func (r *Runner) persist(ctx context.Context, dest core.Destination, snap core.Snapshot, counts stats.Counts) {
	if err := r.Store.AppendSnapshot(ctx, snap); err != nil {
		if r.Metrics != nil {
			r.Metrics.persistErrors.Inc()
		}
		log.Printf("tracker: [%s] append snapshot: %v", destName(dest), err)
	} else if r.Metrics != nil {
		r.Metrics.recordsPersisted.Add(float64(len(snap.Records)))
	}

	row := core.AggregateRow{Ts: snap.Ts, Colonial: counts.Colonial, Cylon: counts.Cylon}
	if err := r.Store.AppendAggregate(ctx, row); err != nil {
		if r.Metrics != nil {
			r.Metrics.persistErrors.Inc()
		}
		log.Printf("tracker: [%s] append aggregate: %v", destName(dest), err)
	}
}

func (r *Runner) publish(ctx context.Context, dest core.Destination, image []byte, text string) {
	lastID, err := r.State.Get(dest.URL)
	if err != nil {
		// Lost continuity is preferable to a lost cycle.
		log.Printf("tracker: [%s] read state: %v", destName(dest), err)
		lastID = ""
	}

	pubCtx := ctx
	if r.PublishTimeout > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(ctx, r.PublishTimeout)
		defer cancel()
	}

	newID, err := r.Publisher.Publish(pubCtx, dest.URL, lastID, image, text)
	if err != nil {
		// State untouched: the next cycle retries against the same id.
		if r.Metrics != nil {
			r.Metrics.publishErrors.Inc()
		}
		log.Printf("tracker: [%s] publish: %v", destName(dest), err)
		return
	}

	mode := "create"
	if lastID != "" {
		mode = "edit"
	}
	if r.Metrics != nil {
		r.Metrics.publishesTotal.WithLabelValues(mode).Inc()
	}

	if err := r.State.Set(dest.URL, newID); err != nil {
		log.Printf("tracker: [%s] record message id: %v", destName(dest), err)
	}
}

func destName(dest core.Destination) string {
	if dest.Label != "" {
		return dest.Label
	}
	return msgstate.Key(dest.URL)
}
