package notification

import (
	"context"
	"time"
)

// Gate suppresses repeat notifications of the same type within a cooldown
// window. It is advisory: two concurrent checks for the same user can both
// pass, which is acceptable because ingestion is serial per user.
type Gate struct {
	log Log
}

// NewGate constructs a Gate over the notification log.
func NewGate(log Log) *Gate {
	return &Gate{log: log}
}

// MayFire reports whether a notification of notifType may be sent to the
// user at now. It returns false iff a prior notification of that type exists
// with age below cooldown. Attempted-but-undelivered records count too, so a
// dead token cannot cause a tight retry loop.
func (g *Gate) MayFire(ctx context.Context, userID, notifType string, cooldown time.Duration, now time.Time) (bool, error) {
	last, err := g.log.LastByType(ctx, userID, notifType, now.Add(-cooldown))
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return now.Sub(last.Ts) >= cooldown, nil
}
