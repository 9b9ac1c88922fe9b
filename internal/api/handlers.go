// Package api exposes HTTP handlers for the insights service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/insights/internal/analysis"
	"example.com/insights/internal/auth"
	"example.com/insights/internal/notification"
	"example.com/insights/internal/progress"
)

// DistributionProvider serves activity distributions over a time range.
type DistributionProvider interface {
	Distribution(ctx context.Context, userID string, start, end time.Time) ([]analysis.DistributionItem, error)
}

// InsightReader lists stored progress insights.
type InsightReader interface {
	ListByUser(ctx context.Context, userID, periodType string, limit, offset int) ([]progress.Insight, error)
}

// WeeklyRunner triggers the weekly progress batch.
type WeeklyRunner interface {
	RunWeekly(ctx context.Context, now time.Time) (progress.Summary, error)
}

// Handler coordinates HTTP requests with the analysis and progress layers.
type Handler struct {
	distributions DistributionProvider
	insights      InsightReader
	notifications notification.Log
	runner        WeeklyRunner
	now           func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(distributions DistributionProvider, insights InsightReader, notifications notification.Log, runner WeeklyRunner) *Handler {
	return &Handler{
		distributions: distributions,
		insights:      insights,
		notifications: notifications,
		runner:        runner,
		now:           time.Now,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activity/distribution", h.distribution)
	mux.HandleFunc("/v1/insights", h.listInsights)
	mux.HandleFunc("/v1/notifications", h.listNotifications)
	mux.HandleFunc("/v1/notifications/", h.notificationByID)
	mux.HandleFunc("/v1/jobs/weekly-progress", h.runWeeklyJob)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) distribution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivityRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activity:read required")
		return
	}

	start, end, err := parseRange(r, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	items, err := h.distributions.Distribution(r.Context(), claims.Subject, start, end)
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, "validation_failed", "end must be after start")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, DistributionResponse{
		UserID: claims.Subject,
		Start:  start,
		End:    end,
		Items:  items,
	})
}

func (h *Handler) listInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeInsightsRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope insights:read required")
		return
	}

	periodType := r.URL.Query().Get("period_type")
	if periodType == "" {
		periodType = progress.PeriodWeek
	}
	limit, offset := parsePage(r)

	insights, err := h.insights.ListByUser(r.Context(), claims.Subject, periodType, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]InsightView, 0, len(insights))
	for _, in := range insights {
		items = append(items, toInsightView(in))
	}
	writeJSON(w, http.StatusOK, ListInsightsResponse{Items: items})
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeNotificationsRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope notifications:read required")
		return
	}

	var (
		records []notification.Record
		err     error
	)
	if r.URL.Query().Get("unread") == "true" {
		records, err = h.notifications.ListUnread(r.Context(), claims.Subject)
	} else {
		limit, offset := parsePage(r)
		records, err = h.notifications.ListByUser(r.Context(), claims.Subject, limit, offset)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]NotificationView, 0, len(records))
	for _, record := range records {
		items = append(items, toNotificationView(record))
	}
	writeJSON(w, http.StatusOK, ListNotificationsResponse{Items: items})
}

func (h *Handler) notificationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	id, action, found := strings.Cut(rest, "/")
	if id == "" || !found || action != "read" {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeNotificationsRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope notifications:read required")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), claims.Subject, id, h.now().UTC()); err != nil {
		if errors.Is(err, notification.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "notification not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) runWeeklyJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeJobsRun) {
		writeError(w, http.StatusForbidden, "forbidden", "scope jobs:run required")
		return
	}

	summary, err := h.runner.RunWeekly(r.Context(), h.now().UTC())
	if err != nil {
		if errors.Is(err, progress.ErrJobRunning) {
			writeError(w, http.StatusConflict, "job_running", "a weekly progress run is already in flight")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func parseRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	end := now.UTC()
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("end must be RFC3339")
		}
		end = parsed
	}

	start := end.Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("start must be RFC3339")
		}
		start = parsed
	}

	return start, end, nil
}

func parsePage(r *http.Request) (limit, offset int) {
	limit = 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// DistributionResponse packages the distribution for one user and range.
type DistributionResponse struct {
	UserID string                      `json:"user_id"`
	Start  time.Time                   `json:"start"`
	End    time.Time                   `json:"end"`
	Items  []analysis.DistributionItem `json:"items"`
}

// InsightView exposes one stored progress insight.
type InsightView struct {
	InsightID       string    `json:"insight_id"`
	Type            string    `json:"insight_type"`
	Category        string    `json:"category"`
	PeriodType      string    `json:"period_type"`
	PeriodStart     time.Time `json:"period_start"`
	ComparisonStart time.Time `json:"comparison_start"`
	ComparisonValue float64   `json:"comparison_value"`
	CurrentValue    float64   `json:"current_value"`
	DeltaValue      float64   `json:"delta_value"`
	DeltaPct        float64   `json:"delta_pct"`
	MessageTitle    string    `json:"message_title"`
	MessageBody     string    `json:"message_body"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListInsightsResponse packages list results.
type ListInsightsResponse struct {
	Items []InsightView `json:"items"`
}

// NotificationView exposes one notification record.
type NotificationView struct {
	NotificationID string          `json:"notification_id"`
	Type           string          `json:"notification_type"`
	Ts             time.Time       `json:"ts"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Delivered      bool            `json:"delivered"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	ReadAt         *time.Time      `json:"read_at,omitempty"`
}

// ListNotificationsResponse packages list results.
type ListNotificationsResponse struct {
	Items []NotificationView `json:"items"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toInsightView(in progress.Insight) InsightView {
	return InsightView{
		InsightID:       in.ID,
		Type:            in.Type,
		Category:        in.Category,
		PeriodType:      in.PeriodType,
		PeriodStart:     in.PeriodStart,
		ComparisonStart: in.ComparisonStart,
		ComparisonValue: in.ComparisonValue,
		CurrentValue:    in.CurrentValue,
		DeltaValue:      in.DeltaValue,
		DeltaPct:        in.DeltaPct,
		MessageTitle:    in.MessageTitle,
		MessageBody:     in.MessageBody,
		CreatedAt:       in.CreatedAt,
	}
}

func toNotificationView(record notification.Record) NotificationView {
	return NotificationView{
		NotificationID: record.ID,
		Type:           record.Type,
		Ts:             record.Ts,
		Payload:        record.Payload,
		Delivered:      record.Delivered,
		DeliveredAt:    record.DeliveredAt,
		ReadAt:         record.ReadAt,
	}
}
