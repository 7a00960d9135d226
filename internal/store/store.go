// Package store is the SQLite adapter behind the matcher's collaborators:
// candidate and job records, the feedback log, the feedback inbox stream and
// persisted weight vectors.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	posted_at  INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_posted_at ON jobs(posted_at);

CREATE TABLE IF NOT EXISTS feedback_log (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id     TEXT NOT NULL UNIQUE,
	candidate_id TEXT NOT NULL,
	job_id       TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	data         TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_log_candidate ON feedback_log(candidate_id);

CREATE TABLE IF NOT EXISTS feedback_inbox (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	payload     TEXT NOT NULL,
	received_at INTEGER NOT NULL,
	acked_at    INTEGER
);

CREATE TABLE IF NOT EXISTS weights (
	version    INTEGER PRIMARY KEY,
	data       TEXT NOT NULL,
	source     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, l *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, logger: logger.OrNop(l), now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveCandidate(ctx context.Context, c *profile.Candidate) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode candidate %s: %w", c.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO candidates (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		c.ID, string(data), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save candidate %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*profile.Candidate, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM candidates WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("candidate %s: %w", id, profile.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate %s: %w", id, err)
	}

	var c profile.Candidate
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("decode candidate %s: %w", id, err)
	}
	return &c, nil
}

// SaveJob stores j. Jobs without a posting time are treated as posted now.
func (s *Store) SaveJob(ctx context.Context, j *profile.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", j.ID, err)
	}
	now := s.now()
	posted := j.PostedAt
	if posted.IsZero() {
		posted = now
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, data, posted_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, posted_at = excluded.posted_at, updated_at = excluded.updated_at`,
		j.ID, string(data), posted.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*profile.Job, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM jobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, profile.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return decodeJob(id, data)
}

// GetRecentJobs lists jobs posted within the last hours, newest first.
// hours <= 0 lists every job.
func (s *Store) GetRecentJobs(ctx context.Context, hours int) ([]*profile.Job, error) {
	var since int64
	if hours > 0 {
		since = s.now().Add(-time.Duration(hours) * time.Hour).UnixMilli()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM jobs WHERE posted_at >= ? ORDER BY posted_at DESC, id`, since)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*profile.Job
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j, err := decodeJob(id, data)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func decodeJob(id, data string) (*profile.Job, error) {
	var j profile.Job
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &j, nil
}

// Counts is a summary of the stored records.
type Counts struct {
	Candidates int `json:"candidates"`
	Jobs       int `json:"jobs"`
	Feedback   int `json:"feedback"`
	Pending    int `json:"pending_inbox"`
}

func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM candidates),
			(SELECT COUNT(*) FROM jobs),
			(SELECT COUNT(*) FROM feedback_log),
			(SELECT COUNT(*) FROM feedback_inbox WHERE acked_at IS NULL)`,
	).Scan(&c.Candidates, &c.Jobs, &c.Feedback, &c.Pending)
	if err != nil {
		return c, fmt.Errorf("count records: %w", err)
	}
	return c, nil
}
