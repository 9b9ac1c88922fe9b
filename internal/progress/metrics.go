package progress

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "weekly",
		Name:      "runs_total",
		Help:      "Number of weekly batch runs completed.",
	})

	userFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "weekly",
		Name:      "user_failures_total",
		Help:      "Number of per-user failures across weekly batch runs.",
	})

	usersProcessedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "weekly",
		Name:      "users_processed_total",
		Help:      "Users handled by the weekly batch grouped by result.",
	}, []string{"result"})

	dispatchFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "weekly",
		Name:      "dispatch_failures_total",
		Help:      "Progress pushes that failed after the user's insights were committed.",
	})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "insights_service",
		Subsystem: "weekly",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one weekly batch run.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(runCounter, userFailureCounter, usersProcessedCounter, dispatchFailureCounter, runDuration)
}

func recordRun(summary Summary, elapsed time.Duration) {
	runCounter.Inc()
	runDuration.Observe(elapsed.Seconds())
	usersProcessedCounter.WithLabelValues("succeeded").Add(float64(summary.Succeeded))
	usersProcessedCounter.WithLabelValues("skipped").Add(float64(summary.Skipped))
	usersProcessedCounter.WithLabelValues("failed").Add(float64(summary.Failed))
}

func recordUserFailure() {
	userFailureCounter.Inc()
}

func recordDispatchFailure() {
	dispatchFailureCounter.Inc()
}
