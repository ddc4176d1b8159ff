package mailer

import (
	"context"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Mailgun sends rendered email through one shared Mailgun client.
type Mailgun struct {
	Sender  string
	Timeout time.Duration
	client  mg.Mailgun
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Sender: sender, Timeout: 10 * time.Second, client: mg.NewMailgun(domain, apiKey)}
}

// Send delivers one message. html is optional; tags are attached for
// delivery analytics and may be empty.
func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string, tags ...string) error {
	msg := m.client.NewMessage(m.Sender, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	if len(tags) > 0 {
		if err := msg.AddTag(tags...); err != nil {
			return err
		}
	}
	c, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()
	_, _, err := m.client.Send(c, msg)
	return err
}
