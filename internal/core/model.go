package core

import "time"

// Faction labels as they appear in the leaderboard table. Anything else is
// carried through verbatim but never counted toward either side.
const (
	FactionColonial = "Colonial"
	FactionCylon    = "Cylon"
)

// PlayerRecord is one parsed leaderboard row. Records are append-only: once
// written to the history store they are never updated or deleted.
type PlayerRecord struct {
	Ts       time.Time // capture timestamp, shared by all records of a snapshot
	Faction  string
	PlayerID string
	Name     string
	Level    int
}

// Snapshot is the set of records parsed from one fetch. An empty snapshot is
// a valid outcome (no data this cycle), not an error.
type Snapshot struct {
	Ts      time.Time
	Records []PlayerRecord
}

// Empty reports whether the snapshot holds no records.
func (s Snapshot) Empty() bool { return len(s.Records) == 0 }

// AggregateRow is one time-series data point: per-cycle faction counts.
type AggregateRow struct {
	Ts       time.Time
	Colonial int
	Cylon    int
}

// Destination is one configured publish target. Loaded once at startup and
// immutable for the process lifetime.
type Destination struct {
	URL       string // webhook endpoint
	SourceURL string // leaderboard page to scrape for this destination
	Label     string // optional display tag, shown in brackets
}
