package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	windowPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "insights_service",
		Subsystem: "persistence",
		Name:      "last_window_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the newest classified window persisted to Postgres.",
	})
	insightPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "insights_service",
		Subsystem: "persistence",
		Name:      "last_insight_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent progress insight persisted to Postgres.",
	})
)

func init() {
	prometheus.MustRegister(windowPersistGauge, insightPersistGauge)
}

// RecordWindowPersisted updates the window persistence watermark gauge.
func RecordWindowPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	windowPersistGauge.Set(float64(ts.Unix()))
}

// RecordInsightPersisted updates the insight persistence watermark gauge.
func RecordInsightPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	insightPersistGauge.Set(float64(ts.Unix()))
}
