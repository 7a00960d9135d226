package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

// SaveWeights records a published weight snapshot. It matches weights.PersistFunc.
func (s *Store) SaveWeights(ctx context.Context, snap weights.Snapshot) error {
	data, err := json.Marshal(snap.Weights)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weights (version, data, source, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET data = excluded.data, source = excluded.source, updated_at = excluded.updated_at`,
		int64(snap.Version), string(data), snap.Source, snap.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save weights v%d: %w", snap.Version, err)
	}
	return nil
}

// LoadWeights returns the latest persisted snapshot or profile.ErrNotFound.
func (s *Store) LoadWeights(ctx context.Context) (*weights.Snapshot, error) {
	history, err := s.WeightHistory(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("weights: %w", profile.ErrNotFound)
	}
	return &history[0], nil
}

// WeightHistory lists up to limit snapshots, newest first.
func (s *Store) WeightHistory(ctx context.Context, limit int) ([]weights.Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT version, data, source, updated_at FROM weights ORDER BY version DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	defer rows.Close()

	var out []weights.Snapshot
	for rows.Next() {
		var (
			version   int64
			data      string
			snap      weights.Snapshot
			updatedAt int64
		)
		if err := rows.Scan(&version, &data, &snap.Source, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan weights: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &snap.Weights); err != nil {
			return nil, fmt.Errorf("decode weights v%d: %w", version, err)
		}
		snap.Version = uint64(version)
		snap.UpdatedAt = timeFromMillis(updatedAt)
		out = append(out, snap)
	}
	return out, rows.Err()
}
