// Package push delivers mobile push notifications over the FCM HTTP v1 API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidToken indicates the registration token is unknown or the app
	// was uninstalled. The token should not be retried.
	ErrInvalidToken = errors.New("push token invalid or unregistered")
	// ErrUnavailable indicates a transient transport failure.
	ErrUnavailable = errors.New("push transport unavailable")
)

// Notification channel categories surfaced to the mobile client.
const (
	ChannelSedentaryAlerts  = "sedentary_alerts"
	ChannelProgressInsights = "progress_insights"
)

// Android colours per channel, matching the mobile notification styling.
const (
	ColorAlert    = "#FF5722"
	ColorProgress = "#006A74"
)

// Message is one push notification addressed to a device token.
type Message struct {
	Token    string
	Title    string
	Body     string
	Data     map[string]string
	Priority string
	Channel  string
	Icon     string
	Color    string
}

// Receipt reports a confirmed delivery.
type Receipt struct {
	MessageID string
}

// Client talks to the FCM v1 send endpoint. It is constructed once at
// process start with its credentials resolved up front; there is no lazy
// global initialisation.
type Client struct {
	endpoint    string
	bearerToken string
	httpClient  *http.Client
}

// NewClient constructs a Client with an explicit request timeout.
func NewClient(endpoint, bearerToken string, timeout time.Duration) *Client {
	return &Client{
		endpoint:    endpoint,
		bearerToken: bearerToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendRequest struct {
	Message wireMessage `json:"message"`
}

type wireMessage struct {
	Token        string            `json:"token"`
	Notification wireNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *androidConfig    `json:"android,omitempty"`
}

type wireNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Priority     string              `json:"priority,omitempty"`
	Notification androidNotification `json:"notification"`
}

type androidNotification struct {
	Icon      string `json:"icon,omitempty"`
	Color     string `json:"color,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// Send delivers msg and distinguishes invalid-token failures from transient
// transport errors via ErrInvalidToken and ErrUnavailable.
func (c *Client) Send(ctx context.Context, msg Message) (Receipt, error) {
	body, err := json.Marshal(sendRequest{Message: wireMessage{
		Token:        msg.Token,
		Notification: wireNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Android: &androidConfig{
			Priority: msg.Priority,
			Notification: androidNotification{
				Icon:      msg.Icon,
				Color:     msg.Color,
				ChannelID: msg.Channel,
			},
		},
	}})
	if err != nil {
		return Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone,
		resp.StatusCode == http.StatusBadRequest:
		// FCM reports unregistered or malformed tokens in this range.
		data, _ := io.ReadAll(resp.Body)
		return Receipt{}, fmt.Errorf("%w: %s", ErrInvalidToken, data)
	case resp.StatusCode >= 300:
		data, _ := io.ReadAll(resp.Body)
		return Receipt{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, data)
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Receipt{MessageID: payload.Name}, nil
}
