package scrape

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/you/bsgo-tracker/internal/core"
)

const maxBodyBytes = 5 << 20

// Fetcher retrieves and parses the leaderboard page into a Snapshot.
type Fetcher struct {
	http *http.Client
	now  func() time.Time
}

// New creates a fetcher backed by the provided HTTP client. If client is nil
// a default client with a sane timeout is used.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{http: client, now: time.Now}
}

// Fetch downloads sourceURL and parses its table rows. Malformed rows
// (fewer than four cells, or a non-numeric level) are dropped silently; an
// empty snapshot is a valid result, not an error. Every accepted record
// shares one capture timestamp taken before parsing.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) (core.Snapshot, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return core.Snapshot{}, errors.New("scrape: empty source url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return core.Snapshot{}, errors.Wrap(err, "scrape: build request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bsgo-tracker/1.0)")

	resp, err := f.http.Do(req)
	if err != nil {
		return core.Snapshot{}, errors.Wrap(err, "scrape: fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return core.Snapshot{}, errors.Errorf("scrape: fetch status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return core.Snapshot{}, errors.Wrap(err, "scrape: parse html")
	}

	return parseDocument(doc, f.now().UTC()), nil
}

func parseDocument(doc *goquery.Document, ts time.Time) core.Snapshot {
	rows := doc.Find("table tbody tr")
	if rows.Length() == 0 {
		rows = doc.Find("tr")
	}

	snap := core.Snapshot{Ts: ts}
	rows.Each(func(_ int, row *goquery.Selection) {
		var cols []string
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			cols = append(cols, strings.TrimSpace(cell.Text()))
		})
		if len(cols) < 4 {
			return
		}
		level, err := strconv.Atoi(cols[3])
		if err != nil || level < 0 {
			return
		}
		snap.Records = append(snap.Records, core.PlayerRecord{
			Ts:       ts,
			Faction:  cols[0],
			PlayerID: cols[1],
			Name:     cols[2],
			Level:    level,
		})
	})
	return snap
}
