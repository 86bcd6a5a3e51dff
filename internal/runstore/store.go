// Package runstore records every triangulated video in a SQLite ledger so
// runs can be listed and compared after the fact.
package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/pose3d/internal/timeutil"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned by Get when no run has the requested id.
var ErrNotFound = errors.New("run not found")

const (
	busyRetries = 5
	busyBackoff = 20 * time.Millisecond
)

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

func dsn(path string) string {
	q := make([]string, len(pragmas))
	for i, p := range pragmas {
		q[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(q, "&")
}

// Run is one produced output table.
type Run struct {
	RunID              string
	Session            string
	Video              string
	OutputPath         string
	Mode               string
	Frames             int
	Landmarks          int
	Cameras            []string
	TriangulatedPoints int
	// MeanError is nil when no point passed the support gate.
	MeanError *float64
	Aligned   bool
	CreatedAt int64
}

// Store persists Run records.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens or creates the ledger at path and migrates it to the latest
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open run ledger %s: %w", path, err)
	}
	s := &Store{db: db, clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetClock replaces the clock used for timestamps and retry backoff.
func (s *Store) SetClock(c timeutil.Clock) {
	s.clock = c
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_BUSY
	}
	return false
}

// retryOnBusy runs fn until it succeeds, fails with anything other than
// SQLITE_BUSY, or runs out of attempts.
func (s *Store) retryOnBusy(fn func() error) error {
	return retry(s.clock, fn, isBusy)
}

func retry(clock timeutil.Clock, fn func() error, transient func(error) bool) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = fn(); err == nil || !transient(err) {
			return err
		}
		clock.Sleep(busyBackoff * time.Duration(attempt+1))
	}
	return err
}

// Insert persists run. RunID and CreatedAt are filled in when empty.
func (s *Store) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}

	var meanError interface{}
	if run.MeanError != nil {
		meanError = *run.MeanError
	}

	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO triangulation_runs (
				run_id, session, video, output_path, mode,
				frames, landmarks, cameras, triangulated_points,
				mean_error, aligned, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Session, run.Video, run.OutputPath, run.Mode,
			run.Frames, run.Landmarks, strings.Join(run.Cameras, ","), run.TriangulatedPoints,
			meanError, run.Aligned, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

const selectRuns = `
	SELECT run_id, session, video, output_path, mode,
	       frames, landmarks, cameras, triangulated_points,
	       mean_error, aligned, created_at
	FROM triangulation_runs`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var cameras string
	var meanError sql.NullFloat64
	err := row.Scan(
		&r.RunID, &r.Session, &r.Video, &r.OutputPath, &r.Mode,
		&r.Frames, &r.Landmarks, &cameras, &r.TriangulatedPoints,
		&meanError, &r.Aligned, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cameras != "" {
		r.Cameras = strings.Split(cameras, ",")
	}
	if meanError.Valid {
		v := meanError.Float64
		r.MeanError = &v
	}
	return &r, nil
}

// Get returns the run with the given id.
func (s *Store) Get(runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(selectRuns+` WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListBySession returns a session's runs, newest first.
func (s *Store) ListBySession(session string) ([]*Run, error) {
	rows, err := s.db.Query(selectRuns+`
		WHERE session = ?
		ORDER BY created_at DESC, video ASC`, session)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestForVideo returns the most recent run for a video in a session, or
// nil when there is none.
func (s *Store) LatestForVideo(session, video string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(selectRuns+`
		WHERE session = ? AND video = ?
		ORDER BY created_at DESC
		LIMIT 1`, session, video))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}
