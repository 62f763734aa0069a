package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dyike/cortexanalyst/internal/session"
	"github.com/dyike/cortexanalyst/models"
)

const timeLayout = time.RFC3339Nano

var ErrNotFound = errors.New("session not found")

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    request TEXT NOT NULL DEFAULT '',
    instrument TEXT NOT NULL DEFAULT '',
    mode TEXT NOT NULL DEFAULT '',
    route TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    degraded INTEGER NOT NULL DEFAULT 0,
    iterations INTEGER NOT NULL DEFAULT 0,
    quality_score REAL NOT NULL DEFAULT 0,
    validated INTEGER NOT NULL DEFAULT 0,
    validated_first INTEGER NOT NULL DEFAULT 0,
    composite_score REAL NOT NULL DEFAULT 0,
    recommendation TEXT NOT NULL DEFAULT '',
    bull_arguments INTEGER NOT NULL DEFAULT 0,
    bear_arguments INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS artifacts (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    key TEXT NOT NULL,
    content TEXT NOT NULL,
    PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS stage_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    success INTEGER NOT NULL,
    kind TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_stage_events_session ON stage_events(session_id, id);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSession(ctx context.Context, db execer, sum models.SessionSummary) error {
	if strings.TrimSpace(sum.Session) == "" {
		return fmt.Errorf("session id is required")
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO sessions (id, request, instrument, mode, route, status, degraded, iterations,
    quality_score, validated, validated_first, composite_score, recommendation,
    bull_arguments, bear_arguments, duration_ms, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    request=excluded.request,
    instrument=excluded.instrument,
    mode=excluded.mode,
    route=excluded.route,
    status=excluded.status,
    degraded=excluded.degraded,
    iterations=excluded.iterations,
    quality_score=excluded.quality_score,
    validated=excluded.validated,
    validated_first=excluded.validated_first,
    composite_score=excluded.composite_score,
    recommendation=excluded.recommendation,
    bull_arguments=excluded.bull_arguments,
    bear_arguments=excluded.bear_arguments,
    duration_ms=excluded.duration_ms,
    started_at=excluded.started_at,
    updated_at=CURRENT_TIMESTAMP
`, sum.Session, sum.Request, sum.Instrument, sum.Mode, string(sum.Route), sum.Status,
		sum.Degraded, sum.Iterations, sum.QualityScore, sum.Validated, sum.ValidatedFirst,
		sum.CompositeScore, sum.Recommendation, sum.BullArguments, sum.BearArguments,
		sum.Duration.Milliseconds(), sum.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// SaveSummary upserts the session row.
func (s *Store) SaveSummary(ctx context.Context, sum models.SessionSummary) error {
	return upsertSession(ctx, s.db, sum)
}

// Archive writes the session row and its artifacts in one transaction.
// The artifact set replaces any previously archived one.
func (s *Store) Archive(ctx context.Context, rec session.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = upsertSession(ctx, tx, rec.Summary); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM artifacts WHERE session_id = ?`, rec.Summary.Session); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	for key, content := range rec.Artifacts {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO artifacts (session_id, key, content) VALUES (?, ?, ?)
`, rec.Summary.Session, key, content); err != nil {
			return fmt.Errorf("insert artifact %s: %w", key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// InsertEvent appends one stage execution record.
func (s *Store) InsertEvent(ctx context.Context, ev models.StageEvent) error {
	if strings.TrimSpace(ev.Session) == "" || strings.TrimSpace(ev.Stage) == "" {
		return fmt.Errorf("session and stage are required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stage_events (session_id, stage, started_at, ended_at, duration_ms, success, kind, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, ev.Session, ev.Stage, ev.Start.UTC().Format(timeLayout), ev.End.UTC().Format(timeLayout),
		ev.Duration().Milliseconds(), ev.Success, string(ev.Kind), ev.Error)
	if err != nil {
		return fmt.Errorf("insert stage event: %w", err)
	}
	return nil
}

const sessionColumns = `id, request, instrument, mode, route, status, degraded, iterations,
    quality_score, validated, validated_first, composite_score, recommendation,
    bull_arguments, bear_arguments, duration_ms, started_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (models.SessionSummary, error) {
	var (
		sum        models.SessionSummary
		route      string
		durationMS int64
		started    string
	)
	err := row.Scan(&sum.Session, &sum.Request, &sum.Instrument, &sum.Mode, &route, &sum.Status,
		&sum.Degraded, &sum.Iterations, &sum.QualityScore, &sum.Validated, &sum.ValidatedFirst,
		&sum.CompositeScore, &sum.Recommendation, &sum.BullArguments, &sum.BearArguments,
		&durationMS, &started)
	if err != nil {
		return sum, err
	}
	sum.Route = models.Route(route)
	sum.Duration = time.Duration(durationMS) * time.Millisecond
	sum.StartedAt, _ = time.Parse(timeLayout, started)
	return sum, nil
}

// Recent lists the latest sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
ORDER BY started_at DESC, rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions rows: %w", err)
	}
	return out, nil
}

func (s *Store) Session(ctx context.Context, id string) (models.SessionSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sum, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return sum, fmt.Errorf("get session: %w", err)
	}
	return sum, nil
}

func (s *Store) Artifacts(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, content FROM artifacts WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) Events(ctx context.Context, sessionID string) ([]models.StageEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, stage, started_at, ended_at, success, kind, error
FROM stage_events
WHERE session_id = ?
ORDER BY id ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list stage events: %w", err)
	}
	defer rows.Close()

	var out []models.StageEvent
	for rows.Next() {
		var (
			ev         models.StageEvent
			start, end string
			kind       string
		)
		if err := rows.Scan(&ev.Session, &ev.Stage, &start, &end, &ev.Success, &kind, &ev.Error); err != nil {
			return nil, fmt.Errorf("scan stage event: %w", err)
		}
		ev.Start, _ = time.Parse(timeLayout, start)
		ev.End, _ = time.Parse(timeLayout, end)
		ev.Kind = models.OutcomeKind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Stats aggregates every recorded session.
type Stats struct {
	Sessions       int
	Validated      int
	ValidatedFirst int
	Degraded       int
	Factual        int
	FullAnalysis   int
	AvgQuality     float64
	AvgIterations  float64
	AvgDuration    time.Duration
	StageFailures  map[string]int
}

func (st Stats) ValidationRate() float64 {
	return rate(st.Validated, st.Sessions)
}

func (st Stats) FirstPassRate() float64 {
	return rate(st.ValidatedFirst, st.Sessions)
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{StageFailures: make(map[string]int)}
	var avgDurationMS float64
	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
    COALESCE(SUM(validated), 0),
    COALESCE(SUM(validated_first), 0),
    COALESCE(SUM(degraded), 0),
    COALESCE(SUM(CASE WHEN route = ? THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN route = ? THEN 1 ELSE 0 END), 0),
    COALESCE(AVG(quality_score), 0),
    COALESCE(AVG(iterations), 0),
    COALESCE(AVG(duration_ms), 0)
FROM sessions
`, string(models.RouteFactual), string(models.RouteFullAnalysis))
	if err := row.Scan(&st.Sessions, &st.Validated, &st.ValidatedFirst, &st.Degraded,
		&st.Factual, &st.FullAnalysis, &st.AvgQuality, &st.AvgIterations, &avgDurationMS); err != nil {
		return st, fmt.Errorf("session stats: %w", err)
	}
	st.AvgDuration = time.Duration(avgDurationMS * float64(time.Millisecond))

	rows, err := s.db.QueryContext(ctx, `
SELECT stage, COUNT(*) FROM stage_events WHERE success = 0 GROUP BY stage
`)
	if err != nil {
		return st, fmt.Errorf("stage stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return st, fmt.Errorf("scan stage stats: %w", err)
		}
		st.StageFailures[stage] = n
	}
	return st, rows.Err()
}
