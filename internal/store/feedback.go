package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ideamlabs/guidesignal-matcher/internal/learning"
)

// Append implements learning.FeedbackLog. Re-appending an event ID is a no-op
// and reports inserted = false.
func (s *Store) Append(ctx context.Context, e learning.Entry) (int, bool, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return 0, false, fmt.Errorf("encode feedback %s: %w", e.Event.ID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_log (event_id, candidate_id, job_id, outcome, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		e.Event.ID, e.Event.CandidateID, e.Event.JobID, string(e.Event.Outcome), string(data), s.now().UnixMilli())
	if err != nil {
		return 0, false, fmt.Errorf("append feedback %s: %w", e.Event.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("append feedback %s: %w", e.Event.ID, err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_log`).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("count feedback: %w", err)
	}
	return count, affected > 0, nil
}

// Entries implements learning.FeedbackLog.
func (s *Store) Entries(ctx context.Context, limit int) ([]learning.Entry, error) {
	query := `SELECT data FROM (SELECT seq, data FROM feedback_log ORDER BY seq DESC LIMIT ?) ORDER BY seq`
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var entries []learning.Entry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		var e learning.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decode feedback: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FeedbackJobIDs implements filtering.FeedbackHistory.
func (s *Store) FeedbackJobIDs(ctx context.Context, candidateID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT job_id FROM feedback_log WHERE candidate_id = ? ORDER BY job_id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list feedback jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OutcomeCounts groups the feedback log by outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM feedback_log GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// Push adds a raw event to the feedback inbox.
func (s *Store) Push(ctx context.Context, payload map[string]any) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode inbox payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO feedback_inbox (payload, received_at) VALUES (?, ?)`, string(data), s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("push feedback: %w", err)
	}
	return res.LastInsertId()
}

// Pending implements learning.StreamSource.
func (s *Store) Pending(ctx context.Context, limit int) ([]learning.RawEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM feedback_inbox WHERE acked_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending feedback: %w", err)
	}
	defer rows.Close()

	var events []learning.RawEvent
	for rows.Next() {
		var ev learning.RawEvent
		var data string
		if err := rows.Scan(&ev.ID, &data); err != nil {
			return nil, fmt.Errorf("scan pending feedback: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &ev.Payload); err != nil {
			// keep it in the stream; the decoder will reject and ack it
			ev.Payload = map[string]any{"raw": data}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Ack implements learning.StreamSource.
func (s *Store) Ack(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UnixMilli()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE feedback_inbox SET acked_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("ack feedback %d: %w", id, err)
		}
	}
	return tx.Commit()
}
