package main

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// WinnerDetermined is the payload handed to the external payout pipeline
// when a human player wins a room.
type WinnerDetermined struct {
	WinnerID    string `json:"winnerId"`
	WinnerName  string `json:"winnerName"`
	RoomID      string `json:"roomId"`
	Tier        string `json:"tier"`
	PlayerCount int    `json:"playerCount"`
}

// PayoutNotifier is invoked fire-and-forget from a room's end sequence. The
// core does not wait for or retry the call; payout success or failure is
// entirely the payout service's concern.
type PayoutNotifier interface {
	WinnerDetermined(w WinnerDetermined)
}

// WebhookPayout POSTs winner notifications to an external HTTP endpoint.
type WebhookPayout struct {
	url    string
	client *http.Client
}

// NewWebhookPayout creates a notifier for the given webhook URL.
func NewWebhookPayout(url string) *WebhookPayout {
	return &WebhookPayout{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// WinnerDetermined delivers the notification. Failures are logged at the
// invocation site and never propagate into room teardown.
func (w *WebhookPayout) WinnerDetermined(payload WinnerDetermined) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("payout: marshal: %v", err)
		return
	}
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("payout: webhook for room %s failed: %v", payload.RoomID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("payout: webhook for room %s returned %s", payload.RoomID, resp.Status)
		return
	}
	log.Printf("payout: winner %s (%s) notified for room %s", payload.WinnerName, payload.WinnerID, payload.RoomID)
}
