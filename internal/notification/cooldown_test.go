package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGateBlocksWithinCooldown(t *testing.T) {
	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	log := &stubLog{last: &Record{ID: "n-1", UserID: "user-1", Type: TypeSedentaryAlert, Ts: base}}
	gate := NewGate(log)

	ok, err := gate.MayFire(context.Background(), "user-1", TypeSedentaryAlert, 30*time.Minute, base.Add(29*time.Minute))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGateAllowsAfterCooldown(t *testing.T) {
	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	// A record older than the cutoff is not returned by the log query.
	log := &stubLog{}
	gate := NewGate(log)

	ok, err := gate.MayFire(context.Background(), "user-1", TypeSedentaryAlert, 30*time.Minute, base.Add(31*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, base.Add(time.Minute), log.lastSince)
}

func TestGateAllowsWhenNoPriorNotification(t *testing.T) {
	gate := NewGate(&stubLog{})

	ok, err := gate.MayFire(context.Background(), "user-1", TypeSedentaryAlert, 30*time.Minute, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGatePropagatesLogError(t *testing.T) {
	wantErr := errors.New("db down")
	gate := NewGate(&stubLog{err: wantErr})

	_, err := gate.MayFire(context.Background(), "user-1", TypeSedentaryAlert, 30*time.Minute, time.Now())
	require.ErrorIs(t, err, wantErr)
}
