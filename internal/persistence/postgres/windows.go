// Package postgres provides pgx-backed implementations of the storage
// interfaces used by analysis, notification, and progress.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/insights/internal/analysis"
	"example.com/insights/internal/events"
	"example.com/insights/internal/observability"
)

// WindowStore persists classified activity windows and serves the grouped
// counts the analyzers aggregate over.
type WindowStore struct {
	pool *pgxpool.Pool
}

// NewWindowStore constructs a WindowStore.
func NewWindowStore(pool *pgxpool.Pool) *WindowStore {
	return &WindowStore{pool: pool}
}

// InsertBatch writes one classifier batch in a single transaction, stamped
// with the model version that produced it. Windows that collide on
// (user_id, ts_start) are redeliveries and are skipped.
func (s *WindowStore) InsertBatch(ctx context.Context, userID, modelVersion string, windows []events.ClassifiedWindow) error {
	if len(windows) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO classified_windows (user_id, activity_label, ts_start, ts_end, model_version)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id, ts_start) DO NOTHING`

	var latest time.Time
	for _, w := range windows {
		if _, err := tx.Exec(ctx, stmt, userID, w.Label, w.TsStart, w.TsEnd, modelVersion); err != nil {
			return err
		}
		if w.TsEnd.After(latest) {
			latest = w.TsEnd
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordWindowPersisted(latest)
	return nil
}

// CountByLabel returns per-label window counts for the user within
// [start, end).
func (s *WindowStore) CountByLabel(ctx context.Context, userID string, start, end time.Time) ([]analysis.LabelCount, error) {
	const query = `SELECT activity_label, COUNT(*)
        FROM classified_windows
        WHERE user_id=$1 AND ts_start >= $2 AND ts_start < $3
        GROUP BY activity_label`

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []analysis.LabelCount
	for rows.Next() {
		var lc analysis.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, lc)
	}
	return counts, rows.Err()
}
