// Package whatsapp provides the WhatsApp send-message transport used
// by the notification dispatcher.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/notify"
)

// sendTimeout bounds a single message send.
const sendTimeout = 30 * time.Second

// Client sends messages through a WhatsApp Business API gateway.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ notify.Transport = (*Client)(nil)

// NewClient creates a WhatsApp transport for the given gateway URL and
// access token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: sendTimeout,
		},
	}
}

// messageRequest is the gateway's send-message payload. Buttons, when
// present, render as interactive reply options.
type messageRequest struct {
	To      string          `json:"to"`
	Text    string          `json:"text"`
	Buttons []messageButton `json:"buttons,omitempty"`
}

type messageButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SendMessage posts one message to the gateway. Non-2xx responses are
// returned as errors with the response body for diagnosis.
func (c *Client) SendMessage(ctx context.Context, phone, text string, buttons []notify.Button) error {
	if phone == "" {
		return fmt.Errorf("recipient is required")
	}

	payload := messageRequest{To: phone, Text: text}
	for _, b := range buttons {
		payload.Buttons = append(payload.Buttons, messageButton{ID: b.ID, Title: b.Title})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	slog.Debug("Message delivered to gateway", "phone", phone)
	return nil
}
