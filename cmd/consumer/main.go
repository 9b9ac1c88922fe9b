package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/insights/internal/analysis"
	"example.com/insights/internal/config"
	"example.com/insights/internal/consumer"
	"example.com/insights/internal/notification"
	persistence "example.com/insights/internal/persistence/postgres"
	"example.com/insights/internal/push"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	windows := persistence.NewWindowStore(pool)
	notifLog := persistence.NewNotificationLog(pool)
	users := persistence.NewUserStore(pool)

	analyzerCfg := analysis.DefaultSedentaryConfig()
	analyzerCfg.EvaluationWindow = cfg.SedentaryWindow
	analyzerCfg.ThresholdPct = cfg.SedentaryThreshold
	analyzerCfg.MinCoverageRatio = cfg.MinCoverageRatio
	analyzer := analysis.NewSedentaryAnalyzer(analysis.NewAggregator(windows), analyzerCfg)

	pushClient := push.NewClient(cfg.PushEndpoint, cfg.PushToken, cfg.PushTimeout)
	gate := notification.NewGate(notifLog)
	dispatcher := notification.NewDispatcher(notifLog, users, gate, pushClient, cfg.AlertCooldown)

	handler := consumer.NewIngestHandler(windows, analyzer, dispatcher)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}

	go func() {
		log.Printf("consumer metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.KafkaGroupID,
		Topic:           cfg.KafkaTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})

	proc := consumer.NewProcessor(reader, handler)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer reader.Close()

		log.Printf("consumer started (topic=%s, group=%s)", cfg.KafkaTopic, cfg.KafkaGroupID)
		if err := proc.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("consumer stopped with error: %v", err)
		}
	}()

	<-stop
	log.Println("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	<-done
}
