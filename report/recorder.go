package report

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/nvr-ai/go-parking/occupancy"
)

const schema = `
CREATE TABLE IF NOT EXISTS stats (
	stats_id INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT NOT NULL,
	frame INTEGER NOT NULL,
	ts_ns INTEGER NOT NULL,
	total INTEGER NOT NULL,
	occupied INTEGER NOT NULL,
	free INTEGER NOT NULL,
	occupancy_rate DOUBLE NOT NULL,
	availability_rate DOUBLE NOT NULL
);
CREATE TABLE IF NOT EXISTS spaces (
	stats_id INTEGER NOT NULL,
	space_id TEXT NOT NULL,
	occupied INTEGER NOT NULL,
	confidence DOUBLE NOT NULL,
	count INTEGER NOT NULL,
	mean DOUBLE NOT NULL,
	FOREIGN KEY(stats_id) REFERENCES stats(stats_id)
);
CREATE INDEX IF NOT EXISTS spaces_space_id ON spaces(space_id);
`

// StatsRow is one recorded pass.
type StatsRow struct {
	Session string `json:"session"`
	Frame   int    `json:"frame"`
	occupancy.Stats
}

// SpaceRow is one recorded region status.
type SpaceRow struct {
	Session    string    `json:"session"`
	Frame      int       `json:"frame"`
	Timestamp  time.Time `json:"timestamp"`
	SpaceID    string    `json:"space_id"`
	Occupied   bool      `json:"occupied"`
	Confidence float64   `json:"confidence"`
	Count      int       `json:"count"`
	Mean       float64   `json:"mean"`
}

// Recorder persists occupancy history in SQLite.
type Recorder struct {
	db *sql.DB
}

// OpenRecorder opens or creates the database at path and applies the schema.
//
// Arguments:
//   - path: The database file, or ":memory:".
//
// Returns:
//   - *Recorder: The recorder. Close it when done.
//   - error: An error if the database cannot be opened or migrated.
func OpenRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply %q", pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Recorder{db: db}, nil
}

// Record stores one result and its per-region statuses in a transaction.
func (r *Recorder) Record(ctx context.Context, session string, frame int, res occupancy.Result) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	s := res.Stats
	out, err := tx.ExecContext(ctx,
		`INSERT INTO stats (session, frame, ts_ns, total, occupied, free, occupancy_rate, availability_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session, frame, s.Timestamp.UnixNano(), s.Total, s.Occupied, s.Free, s.OccupancyRate, s.AvailabilityRate)
	if err != nil {
		return errors.Wrap(err, "insert stats")
	}
	id, err := out.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "stats id")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO spaces (stats_id, space_id, occupied, confidence, count, mean) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare spaces")
	}
	defer stmt.Close()

	for _, st := range res.Statuses {
		if _, err := stmt.ExecContext(ctx, id, st.RegionID, st.Occupied, st.Confidence, st.Count, st.Mean); err != nil {
			return errors.Wrapf(err, "insert space %s", st.RegionID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Recent returns up to limit passes, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]StatsRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session, frame, ts_ns, total, occupied, free, occupancy_rate, availability_rate
		 FROM stats ORDER BY stats_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query stats")
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var row StatsRow
		var ns int64
		if err := rows.Scan(&row.Session, &row.Frame, &ns, &row.Total, &row.Occupied, &row.Free,
			&row.OccupancyRate, &row.AvailabilityRate); err != nil {
			return nil, errors.Wrap(err, "scan stats")
		}
		row.Timestamp = time.Unix(0, ns).UTC()
		out = append(out, row)
	}
	return out, errors.Wrap(rows.Err(), "iterate stats")
}

// SpaceHistory returns up to limit statuses of one space, newest first.
func (r *Recorder) SpaceHistory(ctx context.Context, spaceID string, limit int) ([]SpaceRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.session, s.frame, s.ts_ns, p.space_id, p.occupied, p.confidence, p.count, p.mean
		 FROM spaces p JOIN stats s ON s.stats_id = p.stats_id
		 WHERE p.space_id = ? ORDER BY s.stats_id DESC LIMIT ?`, spaceID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query spaces")
	}
	defer rows.Close()

	var out []SpaceRow
	for rows.Next() {
		var row SpaceRow
		var ns int64
		if err := rows.Scan(&row.Session, &row.Frame, &ns, &row.SpaceID, &row.Occupied,
			&row.Confidence, &row.Count, &row.Mean); err != nil {
			return nil, errors.Wrap(err, "scan space")
		}
		row.Timestamp = time.Unix(0, ns).UTC()
		out = append(out, row)
	}
	return out, errors.Wrap(rows.Err(), "iterate spaces")
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
