// Package events defines the event payloads exchanged with the HAR
// classifier service.
package events

import "time"

// TypeWindowsClassified is the event_type header value carried by
// classifier output records.
const TypeWindowsClassified = "activity.windows.classified"

// ClassifiedWindow is one fixed-duration segment labeled by the classifier.
type ClassifiedWindow struct {
	Label   string    `json:"activity_label"`
	TsStart time.Time `json:"ts_start"`
	TsEnd   time.Time `json:"ts_end"`
}

// WindowsClassified is emitted when the classifier finishes labeling one
// sensor batch for a user.
type WindowsClassified struct {
	UserID       string             `json:"user_id"`
	ModelVersion string             `json:"model_version"`
	Windows      []ClassifiedWindow `json:"windows"`
	ClassifiedAt time.Time          `json:"classified_at"`
}
