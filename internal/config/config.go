package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/you/bsgo-tracker/internal/core"
)

// DefaultSourceURL is the leaderboard page scraped when a destination does
// not configure its own.
const DefaultSourceURL = "https://bsgo.fun/Services/Identity/Account/EU"

const (
	defaultUpdateMinutes = 15
	defaultDBPath        = "tracker.db"
	defaultDataDir       = "."
	defaultFetchSecs     = 30
	defaultPublishSecs   = 60
)

type Config struct {
	Webhooks      string // raw destination list: JSON array or comma-separated URLs
	SourceURL     string // default leaderboard page
	UpdateMinutes int
	DBPath        string // history store (sqlite)
	DataDir       string // per-destination last-message-id files
	FetchSecs     int
	PublishSecs   int
}

// Load reads configuration from BSGO_* environment variables. Missing values
// fall back to defaults; the destination list is validated later by
// Destinations so the caller controls when an empty list becomes fatal.
func Load() Config {
	cfg := Config{}

	cfg.Webhooks = strings.TrimSpace(os.Getenv("BSGO_WEBHOOK_URLS"))
	if cfg.Webhooks == "" {
		cfg.Webhooks = strings.TrimSpace(os.Getenv("WEBHOOK_URLS"))
	}

	cfg.SourceURL = strings.TrimSpace(os.Getenv("BSGO_SOURCE_URL"))
	if cfg.SourceURL == "" {
		cfg.SourceURL = strings.TrimSpace(os.Getenv("BSGO_URL"))
	}
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}

	cfg.UpdateMinutes = readInt("BSGO_UPDATE_MINUTES", 0)
	if cfg.UpdateMinutes <= 0 {
		cfg.UpdateMinutes = readInt("UPDATE_MINUTES", defaultUpdateMinutes)
	}

	cfg.DBPath = strings.TrimSpace(os.Getenv("BSGO_DB_PATH"))
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}

	cfg.DataDir = strings.TrimSpace(os.Getenv("BSGO_DATA_DIR"))
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}

	cfg.FetchSecs = readInt("BSGO_FETCH_TIMEOUT_SECS", defaultFetchSecs)
	cfg.PublishSecs = readInt("BSGO_PUBLISH_TIMEOUT_SECS", defaultPublishSecs)

	return cfg
}

// Destinations parses the configured webhook list. The raw value is either a
// JSON array of {url, source_url, label} objects or a comma-separated list of
// bare endpoint URLs; bare entries inherit the default source URL. An empty
// result is a startup error.
func (c Config) Destinations() ([]core.Destination, error) {
	raw := strings.TrimSpace(c.Webhooks)
	if raw == "" {
		return nil, errors.New("BSGO_WEBHOOK_URLS is required (comma-separated URLs or JSON list)")
	}

	if dests, ok := c.parseJSONList(raw); ok {
		return dests, nil
	}

	var out []core.Destination
	for _, u := range splitList(raw) {
		out = append(out, core.Destination{URL: u, SourceURL: c.SourceURL})
	}
	if len(out) == 0 {
		return nil, errors.New("BSGO_WEBHOOK_URLS contained no destinations")
	}
	return out, nil
}

type destinationJSON struct {
	URL       string `json:"url"`
	SourceURL string `json:"source_url"`
	Label     string `json:"label"`
}

func (c Config) parseJSONList(raw string) ([]core.Destination, bool) {
	var entries []destinationJSON
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}
	var out []core.Destination
	for _, e := range entries {
		u := strings.TrimSpace(e.URL)
		if u == "" {
			continue
		}
		src := strings.TrimSpace(e.SourceURL)
		if src == "" {
			src = c.SourceURL
		}
		out = append(out, core.Destination{URL: u, SourceURL: src, Label: strings.TrimSpace(e.Label)})
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

// Interval is the scheduler period.
func (c Config) Interval() time.Duration {
	m := c.UpdateMinutes
	if m <= 0 {
		m = defaultUpdateMinutes
	}
	return time.Duration(m) * time.Minute
}

// FetchTimeout bounds one leaderboard fetch.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchSecs) * time.Second
}

// PublishTimeout bounds one webhook send, sized for the image payload.
func (c Config) PublishTimeout() time.Duration {
	return time.Duration(c.PublishSecs) * time.Second
}

// Redacted returns a loggable view of the configuration. Webhook URLs embed
// a secret token, so only the destination count survives.
func (c Config) Redacted() map[string]any {
	n := 0
	if dests, err := c.Destinations(); err == nil {
		n = len(dests)
	}
	return map[string]any{
		"destinations":   n,
		"source_url":     c.SourceURL,
		"update_minutes": c.UpdateMinutes,
		"db_path":        c.DBPath,
		"data_dir":       c.DataDir,
		"fetch_secs":     c.FetchSecs,
		"publish_secs":   c.PublishSecs,
	}
}

// RedactedJSON renders Redacted for a startup log line.
func (c Config) RedactedJSON() []byte {
	data, _ := json.Marshal(c.Redacted())
	return data
}
