package analysis

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"
)

// ErrInvalidRange is returned when a caller supplies start > end.
var ErrInvalidRange = errors.New("start time must not be after end time")

// WindowSeconds is the fixed weight of one classified window. The classifier
// samples with 50% overlap, so every window represents 2.5 seconds of wall
// time regardless of its recorded span.
const WindowSeconds = 2.5

// LabelCount is one row of the grouped window count a WindowStore returns.
type LabelCount struct {
	Label string
	Count int64
}

// WindowStore is the read interface over classified-window storage.
type WindowStore interface {
	// CountByLabel returns per-label window counts for the user within
	// [start, end]. An empty slice means no data, not an error.
	CountByLabel(ctx context.Context, userID string, start, end time.Time) ([]LabelCount, error)
}

// DistributionItem is the externally visible share of one activity label.
// All numeric fields are rounded to two decimals; dependent calculations use
// Bucket instead so rounding never compounds.
type DistributionItem struct {
	Label        string  `json:"activity_label"`
	TotalSeconds float64 `json:"total_seconds"`
	TotalMinutes float64 `json:"total_minutes"`
	TotalHours   float64 `json:"total_hours"`
	Percentage   float64 `json:"percentage"`
}

// Bucket carries the unrounded per-label figures used internally by the
// sedentary analyzer and the progress comparator.
type Bucket struct {
	Label   string
	Count   int64
	Seconds float64
	Minutes float64
	Hours   float64
	Share   float64 // 0..100, count-based
}

// Aggregator converts raw classified windows into labeled time buckets.
type Aggregator struct {
	store WindowStore
}

// NewAggregator constructs an Aggregator over the given store.
func NewAggregator(store WindowStore) *Aggregator {
	return &Aggregator{store: store}
}

// Buckets returns unrounded per-label figures sorted by descending share.
func (a *Aggregator) Buckets(ctx context.Context, userID string, start, end time.Time) ([]Bucket, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	counts, err := a.store.CountByLabel(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, nil
	}

	var total int64
	for _, row := range counts {
		total += row.Count
	}

	buckets := make([]Bucket, 0, len(counts))
	for _, row := range counts {
		seconds := float64(row.Count) * WindowSeconds
		bucket := Bucket{
			Label:   row.Label,
			Count:   row.Count,
			Seconds: seconds,
			Minutes: seconds / 60,
			Hours:   seconds / 3600,
		}
		if total > 0 {
			bucket.Share = 100 * float64(row.Count) / float64(total)
		}
		buckets = append(buckets, bucket)
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Share != buckets[j].Share {
			return buckets[i].Share > buckets[j].Share
		}
		return buckets[i].Label < buckets[j].Label
	})
	return buckets, nil
}

// Distribution returns the per-label distribution for the user within
// [start, end], sorted by descending percentage. An empty result means the
// user has no classified windows in range.
func (a *Aggregator) Distribution(ctx context.Context, userID string, start, end time.Time) ([]DistributionItem, error) {
	buckets, err := a.Buckets(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	items := make([]DistributionItem, 0, len(buckets))
	for _, bucket := range buckets {
		items = append(items, DistributionItem{
			Label:        bucket.Label,
			TotalSeconds: round2(bucket.Seconds),
			TotalMinutes: round2(bucket.Minutes),
			TotalHours:   round2(bucket.Hours),
			Percentage:   round2(bucket.Share),
		})
	}
	return items, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
