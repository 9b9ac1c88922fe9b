package progress

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"example.com/insights/internal/analysis"
)

// weekMetrics reduces a distribution to the three category totals.
type weekMetrics struct {
	activeMinutes    float64
	sedentaryMinutes float64
	otherMinutes     float64
}

func (m weekMetrics) total() float64 {
	return m.activeMinutes + m.sedentaryMinutes + m.otherMinutes
}

// Comparator computes week-over-week deltas and produces typed insights.
type Comparator struct {
	aggregator *analysis.Aggregator
	taxonomy   analysis.Taxonomy
	now        func() time.Time
}

// NewComparator constructs a Comparator sharing the canonical taxonomy with
// the sedentary analyzer.
func NewComparator(aggregator *analysis.Aggregator, taxonomy analysis.Taxonomy) *Comparator {
	return &Comparator{aggregator: aggregator, taxonomy: taxonomy, now: time.Now}
}

// WeekStart returns the most recent Monday 00:00 UTC at or before t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// CompareWeek compares the current week against the previous one and returns
// zero to two insights, one per category at most.
func (c *Comparator) CompareWeek(ctx context.Context, userID string, now time.Time) ([]Insight, error) {
	currentStart := WeekStart(now)
	currentEnd := currentStart.AddDate(0, 0, 7)
	previousStart := currentStart.AddDate(0, 0, -7)

	current, err := c.metricsFor(ctx, userID, currentStart, currentEnd)
	if err != nil {
		return nil, fmt.Errorf("current week distribution: %w", err)
	}
	previous, err := c.metricsFor(ctx, userID, previousStart, currentStart)
	if err != nil {
		return nil, fmt.Errorf("previous week distribution: %w", err)
	}

	created := now.UTC()
	base := Insight{
		UserID:          userID,
		PeriodType:      PeriodWeek,
		PeriodStart:     currentStart,
		ComparisonStart: previousStart,
		CreatedAt:       created,
	}

	// Whole-user cases take precedence over per-category comparison.
	if current.total() == 0 && previous.total() == 0 {
		insight := base
		insight.ID = uuid.NewString()
		insight.Type = TypeOther
		insight.Category = CategoryActivity
		insight.MessageTitle = "We miss you"
		insight.MessageBody = "No activity recorded this week. Keep wearing your tracker to stay on top of your wellbeing."
		return []Insight{insight}, nil
	}

	if previous.total() == 0 && current.total() > 0 {
		insight := base
		insight.ID = uuid.NewString()
		insight.Type = TypeOther
		insight.Category = CategoryActivity
		insight.CurrentValue = round2(current.total())
		insight.DeltaValue = round2(current.total())
		insight.DeltaPct = 100.0
		insight.MessageTitle = "Great start!"
		insight.MessageBody = fmt.Sprintf("Congratulations on your first tracked week: %s of recorded activity. Keep it up!", formatMinutes(current.total()))
		return []Insight{insight}, nil
	}

	insights := make([]Insight, 0, 2)
	if insight, ok := c.activeInsight(base, current, previous); ok {
		insights = append(insights, insight)
	}
	if insight, ok := c.sedentaryInsight(base, current, previous); ok {
		insights = append(insights, insight)
	}
	return insights, nil
}

// activeInsight compares active minutes; more is better.
func (c *Comparator) activeInsight(base Insight, current, previous weekMetrics) (Insight, bool) {
	if previous.activeMinutes == 0 && current.activeMinutes == 0 {
		return Insight{}, false
	}
	delta := current.activeMinutes - previous.activeMinutes
	if delta == 0 {
		return Insight{}, false
	}

	insight := base
	insight.ID = uuid.NewString()
	insight.Category = CategoryActivity
	insight.ComparisonValue = round2(previous.activeMinutes)
	insight.CurrentValue = round2(current.activeMinutes)
	insight.DeltaValue = round2(delta)
	insight.DeltaPct = deltaPct(delta, previous.activeMinutes)

	span := formatMinutes(math.Abs(delta))
	pct := math.Abs(insight.DeltaPct)
	if delta > 0 {
		insight.Type = TypeProgress
		insight.MessageTitle = "You increased your active time!"
		insight.MessageBody = fmt.Sprintf("Your active time went up by %s (%.0f%%) this week. Keep going!", span, pct)
	} else {
		insight.Type = TypeImprovement
		insight.MessageTitle = "Your active time dropped"
		insight.MessageBody = fmt.Sprintf("Your active time went down by %s (%.0f%%) this week. You can turn it around!", span, pct)
	}
	return insight, true
}

// sedentaryInsight compares sedentary minutes with inverted polarity; a
// decrease is progress.
func (c *Comparator) sedentaryInsight(base Insight, current, previous weekMetrics) (Insight, bool) {
	if previous.sedentaryMinutes == 0 && current.sedentaryMinutes == 0 {
		return Insight{}, false
	}
	delta := current.sedentaryMinutes - previous.sedentaryMinutes
	if delta == 0 {
		return Insight{}, false
	}

	insight := base
	insight.ID = uuid.NewString()
	insight.Category = CategorySedentary
	insight.ComparisonValue = round2(previous.sedentaryMinutes)
	insight.CurrentValue = round2(current.sedentaryMinutes)
	insight.DeltaValue = round2(delta)
	insight.DeltaPct = deltaPct(delta, previous.sedentaryMinutes)

	span := formatMinutes(math.Abs(delta))
	pct := math.Abs(insight.DeltaPct)
	if delta < 0 {
		insight.Type = TypeProgress
		insight.MessageTitle = "You reduced your sedentary time!"
		insight.MessageBody = fmt.Sprintf("You cut your sedentary time by %s (%.0f%%) this week. Nice work!", span, pct)
	} else {
		insight.Type = TypeImprovement
		insight.MessageTitle = "Your sedentary time went up"
		insight.MessageBody = fmt.Sprintf("You were sedentary %s more (%.0f%%) this week. Try a five minute walk every half hour.", span, pct)
	}
	return insight, true
}

func (c *Comparator) metricsFor(ctx context.Context, userID string, start, end time.Time) (weekMetrics, error) {
	buckets, err := c.aggregator.Buckets(ctx, userID, start, end)
	if err != nil {
		return weekMetrics{}, err
	}

	var metrics weekMetrics
	for _, bucket := range buckets {
		switch {
		case c.taxonomy.Active.Contains(bucket.Label):
			metrics.activeMinutes += bucket.Minutes
		case c.taxonomy.Sedentary.Contains(bucket.Label):
			metrics.sedentaryMinutes += bucket.Minutes
		default:
			// Unrecognized labels still count as tracked time.
			metrics.otherMinutes += bucket.Minutes
		}
	}
	return metrics, nil
}

func deltaPct(delta, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return round2(delta / previous * 100)
}

// formatMinutes renders a duration in minutes as "2h 15min" or "45 minutes".
func formatMinutes(minutes float64) string {
	hours := int(minutes) / 60
	rem := int(minutes) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dmin", hours, rem)
	}
	return fmt.Sprintf("%d minutes", rem)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
