package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const brevoAPIURL = "https://api.brevo.com/v3/smtp/email"

// BrevoEmail sends transactional email through the Brevo HTTP API v3.
type BrevoEmail struct {
	apiKey      string
	senderEmail string
	senderName  string
	endpoint    string
	client      *http.Client
}

func NewBrevoEmail(apiKey, senderEmail, senderName string) *BrevoEmail {
	return &BrevoEmail{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		endpoint:    brevoAPIURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoint points the client at another API URL.
func (b *BrevoEmail) WithEndpoint(endpoint string) *BrevoEmail {
	b.endpoint = endpoint
	return b
}

type brevoAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoSendRequest struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

func (b *BrevoEmail) SendEmail(ctx context.Context, to, subject, html string) error {
	if to == "" || subject == "" || html == "" {
		return errors.New("to, subject, and html content cannot be empty")
	}

	payload, err := json.Marshal(brevoSendRequest{
		Sender:      brevoAddress{Name: b.senderName, Email: b.senderEmail},
		To:          []brevoAddress{{Email: to}},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		return fmt.Errorf("encode brevo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo send failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
