package analysis

import (
	"context"
	"time"
)

// SedentaryState tags the outcome of a sedentary evaluation.
type SedentaryState string

const (
	// StateNoData means the evaluation window held no classified windows at all.
	StateNoData SedentaryState = "no_data"
	// StateInsufficientData means too little of the window was covered for a
	// reliable verdict. It must never trigger a notification.
	StateInsufficientData SedentaryState = "insufficient_data"
	StateNotSedentary     SedentaryState = "not_sedentary"
	StateSedentary        SedentaryState = "sedentary"
)

// SedentaryConfig holds the tunables of the sedentary analyzer. Defaults
// reproduce production behaviour; tests construct their own.
type SedentaryConfig struct {
	EvaluationWindow time.Duration
	ThresholdPct     float64
	MinCoverageRatio float64 // fraction of the window that must hold data
	Taxonomy         Taxonomy
}

// DefaultSedentaryConfig returns the production thresholds: a 30 minute
// window, 83% sedentary share, and 90% minimum data coverage.
func DefaultSedentaryConfig() SedentaryConfig {
	return SedentaryConfig{
		EvaluationWindow: 30 * time.Minute,
		ThresholdPct:     83.0,
		MinCoverageRatio: 0.9,
		Taxonomy:         DefaultTaxonomy(),
	}
}

// SedentaryAnalysis is the result of one evaluation. Percentage is always 0
// for the no-data and insufficient-data states.
type SedentaryAnalysis struct {
	State          SedentaryState
	Percentage     float64
	SedentaryHours float64
	TotalHours     float64
	Breakdown      map[string]float64 // hours per sedentary label
	WindowStart    time.Time
	WindowEnd      time.Time
}

// SedentaryAnalyzer classifies a user's recent behaviour from their
// distribution over a fixed rolling window. It persists nothing.
type SedentaryAnalyzer struct {
	aggregator *Aggregator
	cfg        SedentaryConfig
}

// NewSedentaryAnalyzer constructs an analyzer over the given aggregator.
func NewSedentaryAnalyzer(aggregator *Aggregator, cfg SedentaryConfig) *SedentaryAnalyzer {
	return &SedentaryAnalyzer{aggregator: aggregator, cfg: cfg}
}

// Analyze evaluates [now - window, now] and classifies the user's state.
func (a *SedentaryAnalyzer) Analyze(ctx context.Context, userID string, now time.Time) (SedentaryAnalysis, error) {
	end := now.UTC()
	start := end.Add(-a.cfg.EvaluationWindow)

	result := SedentaryAnalysis{WindowStart: start, WindowEnd: end}

	buckets, err := a.aggregator.Buckets(ctx, userID, start, end)
	if err != nil {
		return SedentaryAnalysis{}, err
	}
	if len(buckets) == 0 {
		result.State = StateNoData
		return result, nil
	}

	var totalHours float64
	for _, bucket := range buckets {
		totalHours += bucket.Hours
	}
	result.TotalHours = round2(totalHours)

	// Sparse or late-arriving data produces misleading shares; require most
	// of the window to be covered before judging.
	minimumHours := a.cfg.EvaluationWindow.Hours() * a.cfg.MinCoverageRatio
	if totalHours < minimumHours {
		result.State = StateInsufficientData
		return result, nil
	}

	var sedentaryHours float64
	breakdown := make(map[string]float64)
	for _, bucket := range buckets {
		if a.cfg.Taxonomy.Sedentary.Contains(bucket.Label) {
			sedentaryHours += bucket.Hours
			breakdown[bucket.Label] = round2(bucket.Hours)
		}
	}

	var pct float64
	if totalHours > 0 {
		pct = sedentaryHours / totalHours * 100
	}

	result.SedentaryHours = round2(sedentaryHours)
	result.Percentage = round2(pct)
	result.Breakdown = breakdown
	if pct >= a.cfg.ThresholdPct {
		result.State = StateSedentary
	} else {
		result.State = StateNotSedentary
	}
	return result, nil
}
