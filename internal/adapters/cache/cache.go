// Package cache persists finished clip analyses so repeated runs skip the
// vision provider entirely.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	clip_id     TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS calibrations (
	clip_id     TEXT NOT NULL,
	segment_id  TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	PRIMARY KEY (clip_id, segment_id),
	FOREIGN KEY (clip_id) REFERENCES analyses(clip_id)
);

CREATE TABLE IF NOT EXISTS tracks (
	clip_id     TEXT NOT NULL,
	track_id    TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	PRIMARY KEY (clip_id, track_id),
	FOREIGN KEY (clip_id) REFERENCES analyses(clip_id)
);

CREATE TABLE IF NOT EXISTS rulings (
	clip_id     TEXT NOT NULL,
	event_id    TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	PRIMARY KEY (clip_id, event_id),
	FOREIGN KEY (clip_id) REFERENCES analyses(clip_id)
);
`

// Analysis is everything the pipeline computed for one clip. Slices keep
// their original registration order across a cache round trip.
type Analysis struct {
	ClipID       string
	Calibrations []*model.Calibration
	Tracks       []*model.Track
	Rulings      []*model.Ruling
}

// Store persists clip analyses in SQLite with JSON payload columns.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores one clip's analysis, replacing any previous entry for the
// clip atomically.
func (s *Store) Put(ctx context.Context, a Analysis) error {
	if a.ClipID == "" {
		return errors.New("empty clip id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"calibrations", "tracks", "rulings", "analyses"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE clip_id = ?", table), a.ClipID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analyses (clip_id, created_at) VALUES (?, ?)`, a.ClipID, now); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	for i, c := range a.Calibrations {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal calibration %s: %w", c.SegmentID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO calibrations (clip_id, segment_id, seq, payload) VALUES (?, ?, ?, ?)`,
			a.ClipID, c.SegmentID, i, string(payload)); err != nil {
			return fmt.Errorf("insert calibration %s: %w", c.SegmentID, err)
		}
	}

	for i, t := range a.Tracks {
		payload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal track %s: %w", t.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tracks (clip_id, track_id, seq, payload) VALUES (?, ?, ?, ?)`,
			a.ClipID, t.ID, i, string(payload)); err != nil {
			return fmt.Errorf("insert track %s: %w", t.ID, err)
		}
	}

	for i, r := range a.Rulings {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal ruling %s: %w", r.EventID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rulings (clip_id, event_id, seq, payload) VALUES (?, ?, ?, ?)`,
			a.ClipID, r.EventID, i, string(payload)); err != nil {
			return fmt.Errorf("insert ruling %s: %w", r.EventID, err)
		}
	}

	return tx.Commit()
}

// Get loads one clip's analysis. Returns ErrNotFound on a cache miss.
func (s *Store) Get(ctx context.Context, clipID string) (Analysis, error) {
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM analyses WHERE clip_id = ?`, clipID).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordCacheMiss()
		return Analysis{}, fmt.Errorf("clip %s: %w", clipID, ErrNotFound)
	}
	if err != nil {
		return Analysis{}, fmt.Errorf("get analysis: %w", err)
	}

	a := Analysis{ClipID: clipID}

	if err := loadRows(ctx, s.db, clipID, "calibrations", &a.Calibrations); err != nil {
		return Analysis{}, err
	}
	if err := loadRows(ctx, s.db, clipID, "tracks", &a.Tracks); err != nil {
		return Analysis{}, err
	}
	if err := loadRows(ctx, s.db, clipID, "rulings", &a.Rulings); err != nil {
		return Analysis{}, err
	}

	metrics.RecordCacheHit()
	return a, nil
}

// loadRows reads one payload table in seq order and unmarshals each row
// into a fresh element appended to out.
func loadRows[T any](ctx context.Context, db *sql.DB, clipID, table string, out *[]*T) error {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT payload FROM %s WHERE clip_id = ? ORDER BY seq", table), clipID)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan %s row: %w", table, err)
		}
		v := new(T)
		if err := json.Unmarshal([]byte(payload), v); err != nil {
			return fmt.Errorf("unmarshal %s row: %w", table, err)
		}
		*out = append(*out, v)
	}
	return rows.Err()
}
