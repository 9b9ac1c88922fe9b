// Command weeklyjob runs one weekly progress comparison pass over all users
// and exits. It is meant to be invoked from cron or a Kubernetes CronJob on
// Sunday evenings.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/insights/internal/analysis"
	"example.com/insights/internal/config"
	"example.com/insights/internal/notification"
	persistence "example.com/insights/internal/persistence/postgres"
	"example.com/insights/internal/progress"
	"example.com/insights/internal/push"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("weekly job received shutdown signal")
		cancel()
	}()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	windows := persistence.NewWindowStore(pool)
	notifLog := persistence.NewNotificationLog(pool)
	insightStore := persistence.NewInsightStore(pool)
	users := persistence.NewUserStore(pool)

	taxonomy := analysis.DefaultTaxonomy()
	aggregator := analysis.NewAggregator(windows)

	pushClient := push.NewClient(cfg.PushEndpoint, cfg.PushToken, cfg.PushTimeout)
	gate := notification.NewGate(notifLog)
	dispatcher := notification.NewDispatcher(notifLog, users, gate, pushClient, cfg.AlertCooldown)

	comparator := progress.NewComparator(aggregator, taxonomy)
	runner := progress.NewRunner(comparator, insightStore, dispatcher, users)

	started := time.Now()
	summary, err := runner.RunWeekly(ctx, started.UTC())
	if err != nil {
		log.Fatalf("weekly progress run failed: %v", err)
	}

	log.Printf("weekly progress run finished in %s (processed=%d succeeded=%d failed=%d skipped=%d)",
		time.Since(started).Round(time.Millisecond), summary.Processed, summary.Succeeded, summary.Failed, summary.Skipped)
	for _, userErr := range summary.Errors {
		log.Printf("user %s failed: %s", userErr.UserID, userErr.Err)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
