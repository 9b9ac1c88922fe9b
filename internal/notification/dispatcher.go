package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"example.com/insights/internal/analysis"
	"example.com/insights/internal/push"
)

// SuppressReason explains why a dispatch produced no notification.
type SuppressReason string

const (
	ReasonNoData           SuppressReason = "no_data"
	ReasonInsufficientData SuppressReason = "insufficient_data"
	ReasonNotSedentary     SuppressReason = "not_sedentary"
	ReasonCooldownActive   SuppressReason = "cooldown_active"
)

// Outcome is the tagged result of a dispatch attempt. When Sent is false,
// Reason explains the suppression; when true, NotificationID identifies the
// created record and PushDelivered reports transport success.
type Outcome struct {
	Sent           bool
	Reason         SuppressReason
	NotificationID string
	PushDelivered  bool
}

// Sender is the push transport the dispatcher needs.
type Sender interface {
	Send(ctx context.Context, msg push.Message) (push.Receipt, error)
}

// CooldownGate is the dedup check consulted before a sedentary alert.
type CooldownGate interface {
	MayFire(ctx context.Context, userID, notifType string, cooldown time.Duration, now time.Time) (bool, error)
}

// Option configures optional dispatcher behaviour.
type Option func(*Dispatcher)

// WithLogger overrides the logger used to report push failures.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Dispatcher orchestrates create-record, push-send, and mark-delivered.
type Dispatcher struct {
	log      Log
	users    UserDirectory
	gate     CooldownGate
	sender   Sender
	cooldown time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// NewDispatcher constructs a Dispatcher. cooldown bounds repeat sedentary
// alerts; progress notifications are not gated because the weekly batch runs
// at most once per period by construction.
func NewDispatcher(nlog Log, users UserDirectory, gate CooldownGate, sender Sender, cooldown time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:      nlog,
		users:    users,
		gate:     gate,
		sender:   sender,
		cooldown: cooldown,
		logger:   log.New(log.Writer(), "[notify] ", log.LstdFlags|log.Lshortfile),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type sedentaryPayload struct {
	Percentage     float64            `json:"sedentary_percentage"`
	SedentaryHours float64            `json:"sedentary_hours"`
	TotalHours     float64            `json:"total_hours"`
	Breakdown      map[string]float64 `json:"sedentary_breakdown"`
	WindowStart    time.Time          `json:"window_start"`
	WindowEnd      time.Time          `json:"window_end"`
}

type progressPayload struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// SendSedentaryAlert records and pushes a sedentary alert for the analysis
// result. Non-sedentary and low-confidence analyses are rejected before the
// cooldown gate is consulted. A push failure does not roll back the record:
// the attempt stays in the log and keeps the cooldown populated.
func (d *Dispatcher) SendSedentaryAlert(ctx context.Context, userID string, a analysis.SedentaryAnalysis) (Outcome, error) {
	switch a.State {
	case analysis.StateSedentary:
	case analysis.StateNotSedentary:
		return suppressed(ReasonNotSedentary), nil
	case analysis.StateInsufficientData:
		return suppressed(ReasonInsufficientData), nil
	default:
		return suppressed(ReasonNoData), nil
	}

	now := d.now().UTC()
	ok, err := d.gate.MayFire(ctx, userID, TypeSedentaryAlert, d.cooldown, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("cooldown check: %w", err)
	}
	if !ok {
		return suppressed(ReasonCooldownActive), nil
	}

	payload, err := json.Marshal(sedentaryPayload{
		Percentage:     a.Percentage,
		SedentaryHours: a.SedentaryHours,
		TotalHours:     a.TotalHours,
		Breakdown:      a.Breakdown,
		WindowStart:    a.WindowStart,
		WindowEnd:      a.WindowEnd,
	})
	if err != nil {
		return Outcome{}, err
	}

	record := Record{
		ID:      uuid.NewString(),
		UserID:  userID,
		Type:    TypeSedentaryAlert,
		Ts:      now,
		Payload: payload,
	}
	if err := d.log.Create(ctx, record); err != nil {
		return Outcome{}, fmt.Errorf("create notification record: %w", err)
	}

	delivered := d.push(ctx, userID, record.ID, push.Message{
		Title: "Time to move!",
		Body:  "You've been in sedentary activities for the last 30 minutes. Get up and take a short walk!",
		Data: map[string]string{
			"type":                 TypeSedentaryAlert,
			"notification_id":      record.ID,
			"sedentary_percentage": strconv.FormatFloat(a.Percentage, 'f', 2, 64),
			"sedentary_hours":      strconv.FormatFloat(a.SedentaryHours, 'f', 2, 64),
			"timestamp":            now.Format(time.RFC3339),
		},
		Priority: "high",
		Channel:  push.ChannelSedentaryAlerts,
		Icon:     "ic_notification",
		Color:    push.ColorAlert,
	})

	recordAlertSent(delivered)
	return Outcome{Sent: true, NotificationID: record.ID, PushDelivered: delivered}, nil
}

// SendProgressNotification records and pushes a weekly progress summary.
func (d *Dispatcher) SendProgressNotification(ctx context.Context, userID, title, body string) (Outcome, error) {
	now := d.now().UTC()

	payload, err := json.Marshal(progressPayload{Title: title, Body: body, Timestamp: now})
	if err != nil {
		return Outcome{}, err
	}

	record := Record{
		ID:      uuid.NewString(),
		UserID:  userID,
		Type:    TypeProgress,
		Ts:      now,
		Payload: payload,
	}
	if err := d.log.Create(ctx, record); err != nil {
		return Outcome{}, fmt.Errorf("create notification record: %w", err)
	}

	delivered := d.push(ctx, userID, record.ID, push.Message{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":            TypeProgress,
			"notification_id": record.ID,
			"timestamp":       now.Format(time.RFC3339),
		},
		Priority: "high",
		Channel:  push.ChannelProgressInsights,
		Icon:     "ic_notification",
		Color:    push.ColorProgress,
	})

	recordProgressSent(delivered)
	return Outcome{Sent: true, NotificationID: record.ID, PushDelivered: delivered}, nil
}

// push resolves the user's token, attempts delivery, and marks the record
// delivered on confirmed success. All failure paths return false without an
// error; the undelivered record is the audit trail.
func (d *Dispatcher) push(ctx context.Context, userID, recordID string, msg push.Message) bool {
	profile, err := d.users.FindByID(ctx, userID)
	if err != nil {
		d.logger.Printf("user lookup failed (user=%s): %v", userID, err)
		recordPushOutcome("lookup_failed")
		return false
	}
	if profile == nil || profile.PushToken == "" {
		d.logger.Printf("no push token for user %s, delivery skipped", userID)
		recordPushOutcome("no_token")
		return false
	}

	msg.Token = profile.PushToken
	if _, err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Printf("push send failed (user=%s, notification=%s): %v", userID, recordID, err)
		recordPushOutcome(pushOutcomeLabel(err))
		return false
	}

	if err := d.log.MarkDelivered(ctx, recordID, d.now().UTC()); err != nil {
		d.logger.Printf("mark delivered failed (notification=%s): %v", recordID, err)
	}
	recordPushOutcome("delivered")
	return true
}

func suppressed(reason SuppressReason) Outcome {
	recordSuppressed(reason)
	return Outcome{Sent: false, Reason: reason}
}
