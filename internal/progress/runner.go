package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"example.com/insights/internal/notification"
)

// ErrJobRunning is returned when a weekly run is requested while another one
// is still in flight (cron tick racing a manual trigger).
var ErrJobRunning = errors.New("weekly progress job already running")

// Default push copy for the weekly summary. The per-insight detail stays in
// the stored insight rows; the push body is a fixed prompt to open the app.
const (
	progressTitle = "Weekly progress"
	progressBody  = "We have new updates on your weekly activity. Check your progress!"
)

// WeekComparer produces insights for one user.
type WeekComparer interface {
	CompareWeek(ctx context.Context, userID string, now time.Time) ([]Insight, error)
}

// Notifier dispatches the generic progress push.
type Notifier interface {
	SendProgressNotification(ctx context.Context, userID, title, body string) (notification.Outcome, error)
}

// UserError records one user's failure inside a batch.
type UserError struct {
	UserID string `json:"user_id"`
	Err    string `json:"error"`
}

// Summary reports the outcome of one weekly batch run.
type Summary struct {
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Errors    []UserError `json:"errors,omitempty"`
}

// RunnerOption configures optional Runner behaviour.
type RunnerOption func(*Runner)

// WithRunnerLogger overrides the batch logger.
func WithRunnerLogger(logger *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Runner drives the weekly progress batch: one isolated unit of work per
// user, sequential, no retries.
type Runner struct {
	comparer WeekComparer
	store    InsightStore
	notifier Notifier
	users    UserEnumerator
	logger   *log.Logger
	running  atomic.Bool
}

// NewRunner constructs a Runner.
func NewRunner(comparer WeekComparer, store InsightStore, notifier Notifier, users UserEnumerator, opts ...RunnerOption) *Runner {
	r := &Runner{
		comparer: comparer,
		store:    store,
		notifier: notifier,
		users:    users,
		logger:   log.New(log.Writer(), "[weekly] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunWeekly processes every user once. A failing user is recorded and
// skipped; the batch never aborts because of one user's data. Re-running for
// the same week is a no-op per category thanks to the existence check.
func (r *Runner) RunWeekly(ctx context.Context, now time.Time) (Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Summary{}, ErrJobRunning
	}
	defer r.running.Store(false)

	start := time.Now()
	userIDs, err := r.users.ListUserIDs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("enumerate users: %w", err)
	}

	summary := Summary{}
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Processed++
		created, err := r.processUser(ctx, userID, now)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, UserError{UserID: userID, Err: err.Error()})
			r.logger.Printf("user %s failed: %v", userID, err)
			recordUserFailure()
			continue
		}
		if created == 0 {
			summary.Skipped++
			continue
		}
		summary.Succeeded++
	}

	recordRun(summary, time.Since(start))
	r.logger.Printf("weekly batch done: processed=%d succeeded=%d skipped=%d failed=%d",
		summary.Processed, summary.Succeeded, summary.Skipped, summary.Failed)
	return summary, nil
}

// processUser is one unit of work. Insight persistence is a single atomic
// batch, so an error before or during CreateBatch leaves no partial rows for
// the user. The push happens after the batch commits and is best-effort: a
// dispatch failure does not fail the user, because the committed rows already
// mark the week as covered. It returns the number of insights created this
// run.
func (r *Runner) processUser(ctx context.Context, userID string, now time.Time) (int, error) {
	insights, err := r.comparer.CompareWeek(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("compare week: %w", err)
	}
	if len(insights) == 0 {
		return 0, nil
	}

	// Drop categories already covered for this period so re-runs stay
	// idempotent.
	fresh := insights[:0]
	for _, insight := range insights {
		exists, err := r.store.ExistsForPeriod(ctx, userID, insight.PeriodType, insight.PeriodStart, insight.Category)
		if err != nil {
			return 0, fmt.Errorf("existence check: %w", err)
		}
		if exists {
			continue
		}
		fresh = append(fresh, insight)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := r.store.CreateBatch(ctx, fresh); err != nil {
		return 0, fmt.Errorf("persist insights: %w", err)
	}

	// One generic dispatch per user per run, however many insights landed.
	if _, err := r.notifier.SendProgressNotification(ctx, userID, progressTitle, progressBody); err != nil {
		r.logger.Printf("progress notification failed for user %s: %v", userID, err)
		recordDispatchFailure()
	}
	return len(fresh), nil
}
