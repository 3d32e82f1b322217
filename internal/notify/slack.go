package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/slack-go/slack"
)

// Slack posts events to an incoming webhook.
type Slack struct {
	url     string
	backoff backoff
}

// NewSlack returns a Slack notifier for webhookURL.
func NewSlack(webhookURL string) (*Slack, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("slack: webhook URL is required")
	}
	return &Slack{url: webhookURL, backoff: defaultBackoff}, nil
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, evt Event) error {
	msg := buildWebhookMessage(evt)
	err := s.backoff.retryOnRateLimit(ctx, func() error {
		return slack.PostWebhookContext(ctx, s.url, msg)
	}, slackRateLimited)
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

func slackRateLimited(err error) (time.Duration, bool) {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// buildWebhookMessage renders an event as one attachment.
func buildWebhookMessage(evt Event) *slack.WebhookMessage {
	att := slack.Attachment{
		Color:    evt.Color,
		Title:    evt.Title,
		Text:     evt.Body,
		Fallback: evt.Title + ": " + evt.Body,
	}
	if !evt.At.IsZero() {
		att.Ts = json.Number(strconv.FormatInt(evt.At.Unix(), 10))
	}
	for _, f := range evt.Fields {
		att.Fields = append(att.Fields, slack.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return &slack.WebhookMessage{
		Text:        evt.Title,
		Attachments: []slack.Attachment{att},
	}
}
