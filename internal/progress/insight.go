// Package progress computes week-over-week activity insights and drives the
// weekly batch that notifies users about them.
package progress

import (
	"context"
	"time"
)

// Insight types.
const (
	TypeProgress    = "progress"
	TypeImprovement = "improvement_opportunity"
	TypeOther       = "other"
)

// Insight categories.
const (
	CategoryActivity  = "activity"
	CategorySedentary = "sedentary"
)

// PeriodWeek is the only comparison period currently produced.
const PeriodWeek = "week"

// Insight is a persisted, typed comparison describing a week-over-week
// change in one activity category. Immutable after creation.
type Insight struct {
	ID              string
	UserID          string
	Type            string
	Category        string
	PeriodType      string
	PeriodStart     time.Time // date, midnight UTC
	ComparisonStart time.Time
	ComparisonValue float64
	CurrentValue    float64
	DeltaValue      float64
	DeltaPct        float64
	MessageTitle    string
	MessageBody     string
	CreatedAt       time.Time
}

// InsightStore captures persistence operations over insights.
type InsightStore interface {
	// CreateBatch persists all insights atomically; either every row lands
	// or none does.
	CreateBatch(ctx context.Context, insights []Insight) error
	// ExistsForPeriod reports whether an insight already exists for the
	// (user, period type, period start, category) tuple.
	ExistsForPeriod(ctx context.Context, userID, periodType string, periodStart time.Time, category string) (bool, error)
	ListByUser(ctx context.Context, userID, periodType string, limit, offset int) ([]Insight, error)
}

// UserEnumerator lists the users the weekly batch must process.
type UserEnumerator interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}
