package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/insights/internal/analysis"
	"example.com/insights/internal/events"
	"example.com/insights/internal/notification"
)

func classifiedMessage(t *testing.T, userID string, windows []events.ClassifiedWindow) Message {
	t.Helper()
	payload, err := json.Marshal(events.WindowsClassified{
		UserID:       userID,
		ModelVersion: "har-v3",
		Windows:      windows,
		ClassifiedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return Message{
		Topic:     "window_classified",
		EventType: events.TypeWindowsClassified,
		UserID:    userID,
		SchemaID:  7,
		Payload:   payload,
	}
}

func someWindows(n int) []events.ClassifiedWindow {
	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	windows := make([]events.ClassifiedWindow, 0, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * 2500 * time.Millisecond)
		windows = append(windows, events.ClassifiedWindow{
			Label:   "sit",
			TsStart: ts,
			TsEnd:   ts.Add(2500 * time.Millisecond),
		})
	}
	return windows
}

func newTestIngestHandler(t *testing.T, writer *stubWindowWriter, evaluator *stubEvaluator, alerts *stubAlertSender) *IngestHandler {
	t.Helper()
	return NewIngestHandler(writer, evaluator, alerts,
		WithIngestLogger(log.New(testWriter{t}, "", 0)),
		WithIngestClock(func() time.Time { return time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC) }),
	)
}

func TestIngestPersistsThenEvaluates(t *testing.T) {
	writer := &stubWindowWriter{}
	evaluator := &stubEvaluator{result: analysis.SedentaryAnalysis{State: analysis.StateSedentary, Percentage: 90}}
	alerts := &stubAlertSender{outcome: notification.Outcome{Sent: true, PushDelivered: true}}
	handler := newTestIngestHandler(t, writer, evaluator, alerts)

	msg := classifiedMessage(t, "user-1", someWindows(4))
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Equal(t, 1, writer.calls)
	require.Equal(t, "user-1", writer.lastUserID)
	require.Equal(t, "har-v3", writer.lastModelVersion)
	require.Len(t, writer.lastWindows, 4)
	require.Equal(t, 1, evaluator.calls)
	require.Equal(t, 1, alerts.calls)
	require.Equal(t, analysis.StateSedentary, alerts.lastAnalysis.State)
}

func TestIngestReturnsPersistenceError(t *testing.T) {
	writer := &stubWindowWriter{err: errors.New("pg down")}
	evaluator := &stubEvaluator{}
	alerts := &stubAlertSender{}
	handler := newTestIngestHandler(t, writer, evaluator, alerts)

	msg := classifiedMessage(t, "user-1", someWindows(2))
	err := handler.Handle(context.Background(), msg)
	require.Error(t, err)

	require.Equal(t, 0, evaluator.calls)
	require.Equal(t, 0, alerts.calls)
}

func TestIngestSwallowsAnalysisError(t *testing.T) {
	writer := &stubWindowWriter{}
	evaluator := &stubEvaluator{err: errors.New("query timeout")}
	alerts := &stubAlertSender{}
	handler := newTestIngestHandler(t, writer, evaluator, alerts)

	msg := classifiedMessage(t, "user-1", someWindows(2))
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Equal(t, 1, writer.calls)
	require.Equal(t, 0, alerts.calls)
}

func TestIngestSwallowsAlertError(t *testing.T) {
	writer := &stubWindowWriter{}
	evaluator := &stubEvaluator{result: analysis.SedentaryAnalysis{State: analysis.StateSedentary, Percentage: 88}}
	alerts := &stubAlertSender{err: errors.New("push backend down")}
	handler := newTestIngestHandler(t, writer, evaluator, alerts)

	msg := classifiedMessage(t, "user-1", someWindows(2))
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Equal(t, 1, writer.calls)
	require.Equal(t, 1, alerts.calls)
}

func TestIngestSkipsUnknownEventType(t *testing.T) {
	writer := &stubWindowWriter{}
	evaluator := &stubEvaluator{}
	alerts := &stubAlertSender{}
	handler := newTestIngestHandler(t, writer, evaluator, alerts)

	msg := classifiedMessage(t, "user-1", someWindows(2))
	msg.EventType = "activity.model.updated"
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Equal(t, 0, writer.calls)
	require.Equal(t, 0, evaluator.calls)
}

func TestIngestSkipsEmptyBatch(t *testing.T) {
	writer := &stubWindowWriter{}
	evaluator := &stubEvaluator{}
	alerts := &stubAlertSender{}
	handler := newTestIngestHandler(t, writer, evaluator, alerts)

	msg := classifiedMessage(t, "user-1", nil)
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Equal(t, 0, writer.calls)
	require.Equal(t, 0, evaluator.calls)
}

func TestIngestFallsBackToHeaderUserID(t *testing.T) {
	writer := &stubWindowWriter{}
	evaluator := &stubEvaluator{}
	alerts := &stubAlertSender{}
	handler := newTestIngestHandler(t, writer, evaluator, alerts)

	msg := classifiedMessage(t, "", someWindows(1))
	msg.UserID = "user-9"
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Equal(t, "user-9", writer.lastUserID)
	require.Equal(t, "user-9", evaluator.lastUserID)
}

type stubWindowWriter struct {
	calls            int
	lastUserID       string
	lastModelVersion string
	lastWindows      []events.ClassifiedWindow
	err              error
}

func (w *stubWindowWriter) InsertBatch(_ context.Context, userID, modelVersion string, windows []events.ClassifiedWindow) error {
	w.calls++
	w.lastUserID = userID
	w.lastModelVersion = modelVersion
	w.lastWindows = windows
	return w.err
}

type stubEvaluator struct {
	calls      int
	lastUserID string
	result     analysis.SedentaryAnalysis
	err        error
}

func (e *stubEvaluator) Analyze(_ context.Context, userID string, _ time.Time) (analysis.SedentaryAnalysis, error) {
	e.calls++
	e.lastUserID = userID
	return e.result, e.err
}

type stubAlertSender struct {
	calls        int
	lastAnalysis analysis.SedentaryAnalysis
	outcome      notification.Outcome
	err          error
}

func (s *stubAlertSender) SendSedentaryAlert(_ context.Context, _ string, a analysis.SedentaryAnalysis) (notification.Outcome, error) {
	s.calls++
	s.lastAnalysis = a
	return s.outcome, s.err
}
