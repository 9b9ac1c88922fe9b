//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/insights/internal/events"
	"example.com/insights/internal/notification"
	"example.com/insights/internal/progress"
)

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("insights"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	userID := uuid.NewString()
	_, err = pool.Exec(ctx, `INSERT INTO users (user_id, push_token) VALUES ($1, $2)`, userID, "token-abc")
	require.NoError(t, err)

	t.Run("windows", func(t *testing.T) {
		store := NewWindowStore(pool)
		base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
		batch := []events.ClassifiedWindow{
			{Label: "sit", TsStart: base, TsEnd: base.Add(2500 * time.Millisecond)},
			{Label: "sit", TsStart: base.Add(2500 * time.Millisecond), TsEnd: base.Add(5 * time.Second)},
			{Label: "walk", TsStart: base.Add(5 * time.Second), TsEnd: base.Add(7500 * time.Millisecond)},
		}
		require.NoError(t, store.InsertBatch(ctx, userID, "har-v3", batch))
		// Redelivery of the same batch must not duplicate rows.
		require.NoError(t, store.InsertBatch(ctx, userID, "har-v3", batch))

		counts, err := store.CountByLabel(ctx, userID, base, base.Add(time.Minute))
		require.NoError(t, err)
		byLabel := map[string]int64{}
		for _, c := range counts {
			byLabel[c.Label] = c.Count
		}
		require.Equal(t, int64(2), byLabel["sit"])
		require.Equal(t, int64(1), byLabel["walk"])

		// Every row carries the classifier version that produced it.
		var stamped int64
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM classified_windows WHERE user_id=$1 AND model_version='har-v3'`,
			userID).Scan(&stamped))
		require.Equal(t, int64(3), stamped)
	})

	t.Run("notifications", func(t *testing.T) {
		log := NewNotificationLog(pool)
		now := time.Now().UTC().Truncate(time.Microsecond)
		record := notification.Record{
			ID:      uuid.NewString(),
			UserID:  userID,
			Type:    notification.TypeSedentaryAlert,
			Ts:      now,
			Payload: json.RawMessage(`{"sedentary_pct":88.5}`),
		}
		require.NoError(t, log.Create(ctx, record))

		last, err := log.LastByType(ctx, userID, notification.TypeSedentaryAlert, now.Add(-time.Hour))
		require.NoError(t, err)
		require.NotNil(t, last)
		require.Equal(t, record.ID, last.ID)
		require.False(t, last.Delivered)

		require.NoError(t, log.MarkDelivered(ctx, record.ID, now.Add(time.Second)))
		require.NoError(t, log.MarkDelivered(ctx, record.ID, now.Add(time.Minute)))

		last, err = log.LastByType(ctx, userID, notification.TypeSedentaryAlert, now.Add(-time.Hour))
		require.NoError(t, err)
		require.True(t, last.Delivered)
		require.NotNil(t, last.DeliveredAt)
		require.Equal(t, now.Add(time.Second), last.DeliveredAt.UTC())

		unread, err := log.ListUnread(ctx, userID)
		require.NoError(t, err)
		require.Len(t, unread, 1)

		// A foreign user cannot mark the record read.
		require.ErrorIs(t, log.MarkRead(ctx, uuid.NewString(), record.ID, now.Add(2*time.Second)), notification.ErrRecordNotFound)

		require.NoError(t, log.MarkRead(ctx, userID, record.ID, now.Add(2*time.Second)))
		unread, err = log.ListUnread(ctx, userID)
		require.NoError(t, err)
		require.Empty(t, unread)

		// Outside the lookback horizon the record is invisible.
		last, err = log.LastByType(ctx, userID, notification.TypeSedentaryAlert, now.Add(time.Hour))
		require.NoError(t, err)
		require.Nil(t, last)
	})

	t.Run("insights", func(t *testing.T) {
		store := NewInsightStore(pool)
		periodStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		batch := []progress.Insight{
			{
				ID:              uuid.NewString(),
				UserID:          userID,
				Type:            progress.TypeProgress,
				Category:        progress.CategoryActivity,
				PeriodType:      progress.PeriodWeek,
				PeriodStart:     periodStart,
				ComparisonStart: periodStart.AddDate(0, 0, -7),
				ComparisonValue: 60,
				CurrentValue:    90,
				DeltaValue:      30,
				DeltaPct:        50,
				MessageTitle:    "More active this week",
				MessageBody:     "You were more active than last week.",
				CreatedAt:       time.Now().UTC(),
			},
		}
		require.NoError(t, store.CreateBatch(ctx, batch))

		exists, err := store.ExistsForPeriod(ctx, userID, progress.PeriodWeek, periodStart, progress.CategoryActivity)
		require.NoError(t, err)
		require.True(t, exists)

		exists, err = store.ExistsForPeriod(ctx, userID, progress.PeriodWeek, periodStart, progress.CategorySedentary)
		require.NoError(t, err)
		require.False(t, exists)

		listed, err := store.ListByUser(ctx, userID, progress.PeriodWeek, 10, 0)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.Equal(t, batch[0].ID, listed[0].ID)

		// The unique constraint rejects a duplicate period row.
		dup := batch[0]
		dup.ID = uuid.NewString()
		require.Error(t, store.CreateBatch(ctx, []progress.Insight{dup}))
	})

	t.Run("users", func(t *testing.T) {
		store := NewUserStore(pool)

		profile, err := store.FindByID(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, profile)
		require.Equal(t, "token-abc", profile.PushToken)

		missing, err := store.FindByID(ctx, uuid.NewString())
		require.NoError(t, err)
		require.Nil(t, missing)

		ids, err := store.ListUserIDs(ctx)
		require.NoError(t, err)
		require.Contains(t, ids, userID)
	})
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
