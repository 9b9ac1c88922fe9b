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

	"example.com/insights/internal/analysis"
	"example.com/insights/internal/api"
	"example.com/insights/internal/auth"
	"example.com/insights/internal/config"
	"example.com/insights/internal/notification"
	persistence "example.com/insights/internal/persistence/postgres"
	"example.com/insights/internal/progress"
	"example.com/insights/internal/push"
	httptransport "example.com/insights/internal/transport/http"
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
	insightStore := persistence.NewInsightStore(pool)
	users := persistence.NewUserStore(pool)

	taxonomy := analysis.DefaultTaxonomy()
	aggregator := analysis.NewAggregator(windows)

	pushClient := push.NewClient(cfg.PushEndpoint, cfg.PushToken, cfg.PushTimeout)
	gate := notification.NewGate(notifLog)
	dispatcher := notification.NewDispatcher(notifLog, users, gate, pushClient, cfg.AlertCooldown)

	comparator := progress.NewComparator(aggregator, taxonomy)
	runner := progress.NewRunner(comparator, insightStore, dispatcher, users)

	handler := api.NewHandler(aggregator, insightStore, notifLog, runner)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		authMiddleware.Wrap(logger(mux)),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("insights-service listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
