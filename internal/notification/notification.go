// Package notification manages the notification log, the alert cooldown
// gate, and push dispatch.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrRecordNotFound is returned when a notification id does not exist or
// belongs to a different user.
var ErrRecordNotFound = errors.New("notification record not found")

// Notification types recorded in the log.
const (
	TypeSedentaryAlert = "sedentary_alert"
	TypeProgress       = "progress"
)

// Record is one notification stored in the log. A record is created before
// the push attempt; DeliveredAt is set only on confirmed transport success,
// and the delivered flag never transitions back to false.
type Record struct {
	ID          string
	UserID      string
	Type        string
	Ts          time.Time
	Payload     json.RawMessage
	Delivered   bool
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// Log captures persistence operations over notification records.
type Log interface {
	Create(ctx context.Context, record Record) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	// MarkRead records when the user opened the notification. The id must
	// belong to userID; otherwise ErrRecordNotFound is returned.
	MarkRead(ctx context.Context, userID, id string, at time.Time) error
	// LastByType returns the most recent record of the given type for the
	// user with Ts >= since, or nil when none exists.
	LastByType(ctx context.Context, userID, notifType string, since time.Time) (*Record, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error)
	ListUnread(ctx context.Context, userID string) ([]Record, error)
}

// Profile is the slice of a user the dispatcher needs.
type Profile struct {
	ID        string
	PushToken string
}

// UserDirectory resolves user ids to delivery profiles.
type UserDirectory interface {
	FindByID(ctx context.Context, userID string) (*Profile, error)
}
