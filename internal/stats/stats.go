package stats

import (
	"fmt"

	"github.com/you/bsgo-tracker/internal/core"
)

// LevelRange is one inclusive level band of the distribution panel.
type LevelRange struct {
	Low  int
	High int
}

// Label renders the band for axis text, e.g. "16-25".
func (r LevelRange) Label() string { return fmt.Sprintf("%d-%d", r.Low, r.High) }

// LevelRanges are the fixed, ordered level bands. A level outside every band
// is excluded from all buckets.
var LevelRanges = []LevelRange{
	{0, 15}, {16, 25}, {26, 45}, {46, 80}, {81, 139}, {140, 200}, {201, 255},
}

// Buckets holds per-band counts, one slot per LevelRanges entry.
type Buckets struct {
	Colonial []int
	Cylon    []int
}

// Bucketize counts snapshot records per faction per level band.
func Bucketize(snap core.Snapshot) Buckets {
	b := Buckets{
		Colonial: make([]int, len(LevelRanges)),
		Cylon:    make([]int, len(LevelRanges)),
	}
	for _, rec := range snap.Records {
		for i, band := range LevelRanges {
			if rec.Level < band.Low || rec.Level > band.High {
				continue
			}
			switch rec.Faction {
			case core.FactionColonial:
				b.Colonial[i]++
			case core.FactionCylon:
				b.Cylon[i]++
			}
			break
		}
	}
	return b
}

// Counts are the snapshot's per-faction totals. Total includes records of
// unknown factions.
type Counts struct {
	Colonial int
	Cylon    int
	Total    int
}

// Count tallies faction membership across the snapshot.
func Count(snap core.Snapshot) Counts {
	c := Counts{Total: len(snap.Records)}
	for _, rec := range snap.Records {
		switch rec.Faction {
		case core.FactionColonial:
			c.Colonial++
		case core.FactionCylon:
			c.Cylon++
		}
	}
	return c
}

// LeaderText compares faction counts across history rows. Tied rows are
// excluded from the percentage base entirely.
func LeaderText(history []core.AggregateRow) string {
	if len(history) == 0 {
		return "No history yet."
	}

	var total, colAhead, cylAhead int
	for _, row := range history {
		if row.Colonial == row.Cylon {
			continue
		}
		total++
		if row.Colonial > row.Cylon {
			colAhead++
		} else {
			cylAhead++
		}
	}
	if total == 0 {
		return "All samples tied."
	}

	colPct := round1(float64(colAhead) * 100.0 / float64(total))
	cylPct := round1(float64(cylAhead) * 100.0 / float64(total))
	return fmt.Sprintf("Colonial ahead: %.1f%% | Cylon ahead: %.1f%%", colPct, cylPct)
}

// SummaryText builds the three-line publish text, optionally prefixed with
// the destination's label in brackets.
func SummaryText(c Counts, label string) string {
	prefix := ""
	if label != "" {
		prefix = fmt.Sprintf("[%s] ", label)
	}
	return fmt.Sprintf("%sColonial Players: %d\nCylon Players: %d\nTotal Players: %d",
		prefix, c.Colonial, c.Cylon, c.Total)
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
