package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/models"
)

type webhookPayload struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	Inputs    estimator.Input  `json:"inputs"`
	Outputs   estimator.Output `json:"outputs"`
	Currency  string           `json:"currency"`
	Text      string           `json:"text"`
	CreatedAt time.Time        `json:"createdAt"`
}

// WebhookSink posts leads to an HTTP endpoint.
type WebhookSink struct {
	url     string
	client  *http.Client
	summary *Summary
}

// WebhookOption configures the webhook sink.
type WebhookOption func(*WebhookSink)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(s *WebhookSink) {
		if client != nil {
			s.client = client
		}
	}
}

// WithSummary overrides the text summary template.
func WithSummary(summary *Summary) WebhookOption {
	return func(s *WebhookSink) {
		if summary != nil {
			s.summary = summary
		}
	}
}

// NewWebhookSink constructs a webhook sink.
func NewWebhookSink(url string, opts ...WebhookOption) (*WebhookSink, error) {
	if url == "" {
		return nil, errors.New("webhook sink: empty url")
	}
	summary, err := NewSummary("")
	if err != nil {
		return nil, err
	}
	sink := &WebhookSink{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		summary: summary,
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink, nil
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Deliver implements Sink. Any non-2xx response is an error.
func (s *WebhookSink) Deliver(ctx context.Context, lead models.Lead) error {
	text, err := s.summary.Render(lead)
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	body, err := json.Marshal(webhookPayload{
		ID:        lead.ID,
		Email:     lead.Email,
		Inputs:    lead.Inputs,
		Outputs:   lead.Outputs,
		Currency:  lead.Currency,
		Text:      text,
		CreatedAt: lead.CreatedAt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook sink: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
