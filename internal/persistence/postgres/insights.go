package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/insights/internal/observability"
	"example.com/insights/internal/progress"
)

// InsightStore is the Postgres-backed store for weekly progress insights.
type InsightStore struct {
	pool *pgxpool.Pool
}

// NewInsightStore constructs an InsightStore.
func NewInsightStore(pool *pgxpool.Pool) *InsightStore {
	return &InsightStore{pool: pool}
}

// CreateBatch persists all insights inside a single transaction so a user's
// weekly batch lands atomically.
func (s *InsightStore) CreateBatch(ctx context.Context, insights []progress.Insight) error {
	if len(insights) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO progress_insights
        (insight_id, user_id, insight_type, category, period_type, period_start, comparison_start,
         comparison_value, current_value, delta_value, delta_pct, message_title, message_body, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	for _, in := range insights {
		if _, err := tx.Exec(ctx, stmt,
			in.ID,
			in.UserID,
			in.Type,
			in.Category,
			in.PeriodType,
			in.PeriodStart,
			in.ComparisonStart,
			in.ComparisonValue,
			in.CurrentValue,
			in.DeltaValue,
			in.DeltaPct,
			in.MessageTitle,
			in.MessageBody,
			in.CreatedAt,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordInsightPersisted(insights[0].CreatedAt)
	return nil
}

// ExistsForPeriod reports whether an insight already exists for the
// (user, period type, period start, category) tuple.
func (s *InsightStore) ExistsForPeriod(ctx context.Context, userID, periodType string, periodStart time.Time, category string) (bool, error) {
	const query = `SELECT EXISTS(
        SELECT 1 FROM progress_insights
        WHERE user_id=$1 AND period_type=$2 AND period_start=$3 AND category=$4)`

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, query, userID, periodType, periodStart, category).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListByUser returns a user's insights for a period type, newest period first.
func (s *InsightStore) ListByUser(ctx context.Context, userID, periodType string, limit, offset int) ([]progress.Insight, error) {
	const query = `SELECT insight_id, user_id, insight_type, category, period_type, period_start, comparison_start,
        comparison_value, current_value, delta_value, delta_pct, message_title, message_body, created_at
        FROM progress_insights
        WHERE user_id=$1 AND period_type=$2
        ORDER BY period_start DESC, category ASC LIMIT $3 OFFSET $4`

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, userID, periodType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []progress.Insight
	for rows.Next() {
		var in progress.Insight
		if err := rows.Scan(
			&in.ID,
			&in.UserID,
			&in.Type,
			&in.Category,
			&in.PeriodType,
			&in.PeriodStart,
			&in.ComparisonStart,
			&in.ComparisonValue,
			&in.CurrentValue,
			&in.DeltaValue,
			&in.DeltaPct,
			&in.MessageTitle,
			&in.MessageBody,
			&in.CreatedAt,
		); err != nil {
			return nil, err
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}
