package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sitewatch/internal/config"
	"sitewatch/internal/models"
)

// SMSSender delivers notifications through the Twilio REST API.
type SMSSender struct {
	cfg    config.Config
	client *http.Client
}

func NewSMSSender(cfg config.Config) *SMSSender {
	return &SMSSender{cfg: cfg, client: &http.Client{}}
}

func (s *SMSSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	if !strings.HasPrefix(msg.Recipient, "+") {
		return fmt.Errorf("invalid phone number: %s", msg.Recipient)
	}

	accountSID := s.cfg.SMS.AccountSID
	authToken := s.cfg.SMS.AuthToken
	fromNumber := s.cfg.SMS.FromNumber
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return fmt.Errorf("missing SMS configuration: AccountSID, AuthToken, or FromNumber is empty")
	}

	urlStr := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", accountSID)
	form := url.Values{}
	form.Set("To", msg.Recipient)
	form.Set("From", fromNumber)
	body := msg.Body
	if msg.Subject != "" {
		body = fmt.Sprintf("%s\n%s", msg.Subject, msg.Body)
	}
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request for %s: %w", msg.Recipient, err)
	}
	req.SetBasicAuth(accountSID, authToken)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", msg.Recipient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("Twilio API returned status %d for %s", resp.StatusCode, msg.Recipient)
	}
	return nil
}
