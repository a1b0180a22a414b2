package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendChannel delivers messages through the Resend API.
type ResendChannel struct {
	client     *resend.Client
	from       string
	recipients []string
}

// NewResendChannel constructs a Resend channel.
func NewResendChannel(apiKey, from string, recipients []string) (*ResendChannel, error) {
	if apiKey == "" {
		return nil, errors.New("resend channel: empty api key")
	}
	if from == "" {
		return nil, errors.New("resend channel: empty from address")
	}
	if len(recipients) == 0 {
		return nil, errors.New("resend channel: no recipients")
	}
	return &ResendChannel{
		client:     resend.NewClient(apiKey),
		from:       from,
		recipients: recipients,
	}, nil
}

// Name identifies the channel in logs and metrics.
func (c *ResendChannel) Name() string { return "resend" }

// Send delivers one message to all recipients.
func (c *ResendChannel) Send(ctx context.Context, msg Message) error {
	if c == nil || c.client == nil {
		return errors.New("resend channel: nil client")
	}
	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      c.recipients,
		Subject: msg.Subject,
	}
	if msg.HTML != "" {
		params.Html = msg.HTML
	} else {
		params.Text = msg.Text
	}
	if _, err := c.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend channel: send: %w", err)
	}
	return nil
}
