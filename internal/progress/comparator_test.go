package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/insights/internal/analysis"
)

// rangeWindowStore answers CountByLabel per requested range start, letting a
// test model a current and a previous week independently.
type rangeWindowStore struct {
	byStart map[time.Time][]analysis.LabelCount
}

func (s *rangeWindowStore) CountByLabel(_ context.Context, _ string, start, _ time.Time) ([]analysis.LabelCount, error) {
	return s.byStart[start], nil
}

// countsForMinutes converts minutes per label into window counts.
func countsForMinutes(minutes map[string]float64) []analysis.LabelCount {
	counts := make([]analysis.LabelCount, 0, len(minutes))
	for label, m := range minutes {
		counts = append(counts, analysis.LabelCount{Label: label, Count: int64(m * 60 / analysis.WindowSeconds)})
	}
	return counts
}

func newComparator(store analysis.WindowStore) *Comparator {
	return NewComparator(analysis.NewAggregator(store), analysis.DefaultTaxonomy())
}

// A Wednesday; current week starts Monday March 2.
var wednesday = time.Date(2026, time.March, 4, 15, 0, 0, 0, time.UTC)

var (
	currentWeekStart  = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	previousWeekStart = time.Date(2026, time.February, 23, 0, 0, 0, 0, time.UTC)
)

func TestWeekStart(t *testing.T) {
	require.Equal(t, currentWeekStart, WeekStart(wednesday))
	// A Monday is its own week start; a Sunday belongs to the prior Monday.
	require.Equal(t, currentWeekStart, WeekStart(currentWeekStart.Add(30*time.Second)))
	require.Equal(t, previousWeekStart, WeekStart(time.Date(2026, time.March, 1, 23, 0, 0, 0, time.UTC)))
}

func TestCompareWeekBothWeeksEmpty(t *testing.T) {
	comparator := newComparator(&rangeWindowStore{byStart: map[time.Time][]analysis.LabelCount{}})

	insights, err := comparator.CompareWeek(context.Background(), "user-1", wednesday)
	require.NoError(t, err)
	require.Len(t, insights, 1)

	insight := insights[0]
	require.Equal(t, TypeOther, insight.Type)
	require.Equal(t, CategoryActivity, insight.Category)
	require.Zero(t, insight.DeltaPct)
	require.Equal(t, currentWeekStart, insight.PeriodStart)
	require.Equal(t, previousWeekStart, insight.ComparisonStart)
}

func TestCompareWeekFirstWeekWithData(t *testing.T) {
	store := &rangeWindowStore{byStart: map[time.Time][]analysis.LabelCount{
		currentWeekStart: countsForMinutes(map[string]float64{"walk": 120}),
	}}
	comparator := newComparator(store)

	insights, err := comparator.CompareWeek(context.Background(), "user-1", wednesday)
	require.NoError(t, err)
	require.Len(t, insights, 1)

	insight := insights[0]
	require.Equal(t, TypeOther, insight.Type)
	require.Equal(t, CategoryActivity, insight.Category)
	require.Equal(t, 100.0, insight.DeltaPct)
	require.InDelta(t, 120.0, insight.CurrentValue, 0.01)
	require.Contains(t, insight.MessageBody, "2h 0min")
}

func TestCompareWeekBothCategoriesImprove(t *testing.T) {
	store := &rangeWindowStore{byStart: map[time.Time][]analysis.LabelCount{
		previousWeekStart: countsForMinutes(map[string]float64{"walk": 60, "sit": 300}),
		currentWeekStart:  countsForMinutes(map[string]float64{"walk": 90, "sit": 250}),
	}}
	comparator := newComparator(store)

	insights, err := comparator.CompareWeek(context.Background(), "user-1", wednesday)
	require.NoError(t, err)
	require.Len(t, insights, 2)

	active := insights[0]
	require.Equal(t, CategoryActivity, active.Category)
	require.Equal(t, TypeProgress, active.Type)
	require.InDelta(t, 30.0, active.DeltaValue, 0.01)
	require.InDelta(t, 50.0, active.DeltaPct, 0.01)

	sedentary := insights[1]
	require.Equal(t, CategorySedentary, sedentary.Category)
	require.Equal(t, TypeProgress, sedentary.Type, "less sedentary time is progress")
	require.InDelta(t, -50.0, sedentary.DeltaValue, 0.01)
	require.InDelta(t, -16.67, sedentary.DeltaPct, 0.01)
}

func TestCompareWeekBothCategoriesRegress(t *testing.T) {
	store := &rangeWindowStore{byStart: map[time.Time][]analysis.LabelCount{
		previousWeekStart: countsForMinutes(map[string]float64{"workouts": 90, "type": 200}),
		currentWeekStart:  countsForMinutes(map[string]float64{"workouts": 45, "type": 260}),
	}}
	comparator := newComparator(store)

	insights, err := comparator.CompareWeek(context.Background(), "user-1", wednesday)
	require.NoError(t, err)
	require.Len(t, insights, 2)

	require.Equal(t, TypeImprovement, insights[0].Type)
	require.InDelta(t, -45.0, insights[0].DeltaValue, 0.01)
	require.Equal(t, TypeImprovement, insights[1].Type, "more sedentary time is an improvement opportunity")
	require.InDelta(t, 60.0, insights[1].DeltaValue, 0.01)
}

func TestCompareWeekUnchangedCategoryProducesNoInsight(t *testing.T) {
	store := &rangeWindowStore{byStart: map[time.Time][]analysis.LabelCount{
		previousWeekStart: countsForMinutes(map[string]float64{"walk": 60, "sit": 100}),
		currentWeekStart:  countsForMinutes(map[string]float64{"walk": 60, "sit": 120}),
	}}
	comparator := newComparator(store)

	insights, err := comparator.CompareWeek(context.Background(), "user-1", wednesday)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, CategorySedentary, insights[0].Category)
}

func TestCompareWeekOnlyOtherActivity(t *testing.T) {
	// "others" counts toward the weekly total but belongs to no compared
	// category, so a returning user with only other-labeled time produces no
	// category insight.
	store := &rangeWindowStore{byStart: map[time.Time][]analysis.LabelCount{
		previousWeekStart: countsForMinutes(map[string]float64{"others": 50}),
		currentWeekStart:  countsForMinutes(map[string]float64{"others": 80}),
	}}
	comparator := newComparator(store)

	insights, err := comparator.CompareWeek(context.Background(), "user-1", wednesday)
	require.NoError(t, err)
	require.Empty(t, insights)
}
