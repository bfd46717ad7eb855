package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/you/bsgo-tracker/internal/core"
)

const schema = `CREATE TABLE IF NOT EXISTS players (
  ts TEXT NOT NULL,
  faction TEXT NOT NULL,
  player_id TEXT NOT NULL,
  name TEXT NOT NULL,
  level INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS aggregates (
  ts TEXT NOT NULL,
  colonial INTEGER NOT NULL,
  cylon INTEGER NOT NULL
);`

// Store is the append-only history store. Rows are only ever inserted; the
// tables grow monotonically and prior rows are never rewritten.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping() error { return s.db.Ping() }

// AppendSnapshot inserts every record of the snapshot into the player log.
// An empty snapshot is a no-op.
func (s *Store) AppendSnapshot(ctx context.Context, snap core.Snapshot) error {
	if snap.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin append snapshot")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO players (ts, faction, player_id, name, level) VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return errors.Wrap(err, "prepare player insert")
	}
	defer stmt.Close()

	for _, rec := range snap.Records {
		ts := rec.Ts.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.ExecContext(ctx, ts, rec.Faction, rec.PlayerID, rec.Name, rec.Level); err != nil {
			return errors.Wrap(err, "insert player record")
		}
	}

	return errors.Wrap(tx.Commit(), "commit snapshot")
}

// AppendAggregate inserts one time-series row. Zero counts are valid; the
// row is appended every cycle regardless of snapshot contents.
func (s *Store) AppendAggregate(ctx context.Context, row core.AggregateRow) error {
	const q = `INSERT INTO aggregates (ts, colonial, cylon) VALUES (?, ?, ?);`
	ts := row.Ts.UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, q, ts, row.Colonial, row.Cylon)
	return errors.Wrap(err, "insert aggregate row")
}

// ReadHistory returns all aggregate rows ordered by timestamp. A store with
// no history yields an empty slice and no error.
func (s *Store) ReadHistory(ctx context.Context) ([]core.AggregateRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, colonial, cylon FROM aggregates ORDER BY ts ASC;`)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	var out []core.AggregateRow
	for rows.Next() {
		var (
			row core.AggregateRow
			ts  string
		)
		if err := rows.Scan(&ts, &row.Colonial, &row.Cylon); err != nil {
			return nil, errors.Wrap(err, "scan aggregate row")
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			row.Ts = t
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate history")
	}
	return out, nil
}

// CountPlayers reports the size of the player log.
func (s *Store) CountPlayers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players;`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count players")
	}
	return n, nil
}
