package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/insights/internal/notification"
)

// NotificationLog is the Postgres-backed notification log.
type NotificationLog struct {
	pool *pgxpool.Pool
}

// NewNotificationLog constructs a NotificationLog.
func NewNotificationLog(pool *pgxpool.Pool) *NotificationLog {
	return &NotificationLog{pool: pool}
}

const notificationColumns = `notification_id, user_id, notification_type, ts, payload, delivered, delivered_at, read_at`

// Create inserts a new undelivered record.
func (l *NotificationLog) Create(ctx context.Context, record notification.Record) error {
	const stmt = `INSERT INTO notifications (notification_id, user_id, notification_type, ts, payload, delivered)
        VALUES ($1,$2,$3,$4,$5,$6)`

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, stmt,
		record.ID,
		record.UserID,
		record.Type,
		record.Ts,
		record.Payload,
		record.Delivered,
	)
	return err
}

// MarkDelivered flags the record as delivered. The flag only ever moves
// forward, so a repeated call is a no-op.
func (l *NotificationLog) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	const stmt = `UPDATE notifications SET delivered=TRUE, delivered_at=$2
        WHERE notification_id=$1 AND delivered=FALSE`

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, stmt, id, at)
	return err
}

// MarkRead records when the user opened the notification. The predicate is
// scoped to the user, so an id owned by someone else reports not found. The
// first read timestamp wins on repeated calls.
func (l *NotificationLog) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	const stmt = `UPDATE notifications SET read_at=COALESCE(read_at, $3)
        WHERE notification_id=$1 AND user_id=$2`

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, stmt, id, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notification.ErrRecordNotFound
	}
	return nil
}

// LastByType returns the most recent record of the given type for the user
// with ts >= since, or nil when none exists.
func (l *NotificationLog) LastByType(ctx context.Context, userID, notifType string, since time.Time) (*notification.Record, error) {
	const query = `SELECT ` + notificationColumns + `
        FROM notifications
        WHERE user_id=$1 AND notification_type=$2 AND ts >= $3
        ORDER BY ts DESC LIMIT 1`

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, query, userID, notifType, since)
	record, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// ListByUser returns the user's notifications, newest first.
func (l *NotificationLog) ListByUser(ctx context.Context, userID string, limit, offset int) ([]notification.Record, error) {
	const query = `SELECT ` + notificationColumns + `
        FROM notifications
        WHERE user_id=$1
        ORDER BY ts DESC LIMIT $2 OFFSET $3`

	return l.list(ctx, query, userID, limit, offset)
}

// ListUnread returns the user's unread notifications, newest first.
func (l *NotificationLog) ListUnread(ctx context.Context, userID string) ([]notification.Record, error) {
	const query = `SELECT ` + notificationColumns + `
        FROM notifications
        WHERE user_id=$1 AND read_at IS NULL
        ORDER BY ts DESC`

	return l.list(ctx, query, userID)
}

func (l *NotificationLog) list(ctx context.Context, query string, args ...interface{}) ([]notification.Record, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []notification.Record
	for rows.Next() {
		record, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanNotification(row pgx.Row) (*notification.Record, error) {
	var record notification.Record
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Type,
		&record.Ts,
		&record.Payload,
		&record.Delivered,
		&record.DeliveredAt,
		&record.ReadAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}
