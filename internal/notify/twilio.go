package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioSMS sends SMS through the Twilio REST API.
type TwilioSMS struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

func NewTwilioSMS(accountSID, authToken, from string) *TwilioSMS {
	return &TwilioSMS{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioAPIBase,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the client at another API host.
func (t *TwilioSMS) WithBaseURL(baseURL string) *TwilioSMS {
	t.baseURL = strings.TrimRight(baseURL, "/")
	return t
}

func (t *TwilioSMS) SendSMS(ctx context.Context, to, message string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", t.from)
	data.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio send failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
