package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/insights/internal/notification"
)

// UserStore resolves user delivery profiles and enumerates users for batch
// jobs.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore constructs a UserStore.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// FindByID returns the user's delivery profile, or nil when the user does
// not exist.
func (s *UserStore) FindByID(ctx context.Context, userID string) (*notification.Profile, error) {
	const query = `SELECT user_id, COALESCE(push_token, '') FROM users WHERE user_id=$1`

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var profile notification.Profile
	if err := conn.QueryRow(ctx, query, userID).Scan(&profile.ID, &profile.PushToken); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// ListUserIDs returns every active user id, in stable order so batch runs
// are reproducible.
func (s *UserStore) ListUserIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT user_id FROM users WHERE active ORDER BY user_id`

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, err
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
