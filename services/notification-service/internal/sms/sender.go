package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodyRunes caps a message at four concatenated segments.
const MaxBodyRunes = 612

type Message struct {
	To   string
	Body string
	// Reference ties retries of the same notification together at the
	// gateway. Delivery uses event ID plus recipient.
	Reference string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
	ProviderID() string
}

// WebhookSender posts {"to", "body", "reference"} to an HTTP SMS gateway.
type WebhookSender struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookSender(url string, token string) *WebhookSender {
	return &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookSender) ProviderID() string { return "sms-webhook" }

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	if s.url == "" {
		return fmt.Errorf("sms webhook url not configured")
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("sms recipient is empty")
	}
	raw, err := json.Marshal(webhookPayload{To: msg.To, Body: truncate(msg.Body), Reference: msg.Reference})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if msg.Reference != "" {
		req.Header.Set("Idempotency-Key", msg.Reference)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms webhook returned %d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	Reference string `json:"reference,omitempty"`
}

func truncate(body string) string {
	if utf8.RuneCountInString(body) <= MaxBodyRunes {
		return body
	}
	r := []rune(body)
	return string(r[:MaxBodyRunes-1]) + "…"
}

// NoopSender accepts everything; used when no SMS gateway is configured.
type NoopSender struct{}

func NewNoopSender() *NoopSender { return &NoopSender{} }

func (s *NoopSender) ProviderID() string { return "sms-noop" }

func (s *NoopSender) Send(context.Context, Message) error { return nil }
