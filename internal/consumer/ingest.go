package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"example.com/insights/internal/analysis"
	"example.com/insights/internal/events"
	"example.com/insights/internal/notification"
)

// WindowWriter persists classified activity windows.
type WindowWriter interface {
	InsertBatch(ctx context.Context, userID, modelVersion string, windows []events.ClassifiedWindow) error
}

// SedentaryEvaluator inspects a user's recent windows for prolonged sitting.
type SedentaryEvaluator interface {
	Analyze(ctx context.Context, userID string, now time.Time) (analysis.SedentaryAnalysis, error)
}

// AlertSender delivers sedentary alerts subject to cooldown rules.
type AlertSender interface {
	SendSedentaryAlert(ctx context.Context, userID string, a analysis.SedentaryAnalysis) (notification.Outcome, error)
}

// IngestOption configures optional behaviour for the IngestHandler.
type IngestOption func(*IngestHandler)

// WithIngestLogger overrides the logger used by the handler.
func WithIngestLogger(logger *log.Logger) IngestOption {
	return func(h *IngestHandler) {
		h.logger = logger
	}
}

// WithIngestClock overrides the time source used for sedentary evaluation.
func WithIngestClock(now func() time.Time) IngestOption {
	return func(h *IngestHandler) {
		h.now = now
	}
}

// IngestHandler persists classifier output and triggers the realtime
// sedentary check. Persistence failures are returned so the offset stays
// uncommitted; alert failures are logged and swallowed because the alert
// path can always be retried on the next batch.
type IngestHandler struct {
	windows   WindowWriter
	evaluator SedentaryEvaluator
	alerts    AlertSender
	logger    *log.Logger
	now       func() time.Time
}

// NewIngestHandler constructs a handler backed by the provided stores.
func NewIngestHandler(windows WindowWriter, evaluator SedentaryEvaluator, alerts AlertSender, opts ...IngestOption) *IngestHandler {
	h := &IngestHandler{
		windows:   windows,
		evaluator: evaluator,
		alerts:    alerts,
		logger:    log.New(log.Writer(), "[ingest] ", log.LstdFlags|log.Lshortfile),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle decodes and stores a windows-classified event, then evaluates the
// user's rolling window for a sedentary alert.
func (h *IngestHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeWindowsClassified {
		h.logger.Printf("skipping unknown event type %q (topic=%s, offset=%d)", msg.EventType, msg.Topic, msg.Offset)
		return nil
	}

	var payload events.WindowsClassified
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal windows payload: %w", err)
	}
	if payload.UserID == "" {
		payload.UserID = msg.UserID
	}
	if len(payload.Windows) == 0 {
		return nil
	}

	if err := h.windows.InsertBatch(ctx, payload.UserID, payload.ModelVersion, payload.Windows); err != nil {
		return fmt.Errorf("persist windows for user %s: %w", payload.UserID, err)
	}
	recordWindowsIngested(len(payload.Windows))

	h.checkSedentary(ctx, payload.UserID)
	return nil
}

func (h *IngestHandler) checkSedentary(ctx context.Context, userID string) {
	result, err := h.evaluator.Analyze(ctx, userID, h.now())
	if err != nil {
		h.logger.Printf("sedentary analysis failed for user %s: %v", userID, err)
		return
	}

	outcome, err := h.alerts.SendSedentaryAlert(ctx, userID, result)
	if err != nil {
		h.logger.Printf("sedentary alert failed for user %s: %v", userID, err)
		return
	}
	if outcome.Sent && !outcome.PushDelivered {
		h.logger.Printf("sedentary alert recorded but not delivered for user %s (notification=%s)", userID, outcome.NotificationID)
	}
}
