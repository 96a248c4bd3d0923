package mailer

import (
	"context"
	"fmt"
	"sync"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/deusflow/rundown/internal/logger"
)

const (
	DefaultFromAddress = "yourdailyrundown@gmail.com"
	DefaultFromName    = "YourDailyRundown"
)

// Message is one outgoing HTML email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Sender delivers a message. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid sends through the SendGrid v3 API.
type SendGrid struct {
	client   sendgridClient
	fromAddr string
	fromName string
}

var _ Sender = (*SendGrid)(nil)

func NewSendGrid(apiKey, fromAddr, fromName string) *SendGrid {
	if fromAddr == "" {
		fromAddr = DefaultFromAddress
	}
	if fromName == "" {
		fromName = DefaultFromName
	}
	return &SendGrid{
		client:   sendgrid.NewSendClient(apiKey),
		fromAddr: fromAddr,
		fromName: fromName,
	}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.fromName, s.fromAddr)
	to := mail.NewEmail(msg.ToName, msg.To)
	m := mail.NewSingleEmail(from, msg.Subject, to, "", msg.HTML)

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned HTTP %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender records messages instead of sending them.
type LogSender struct {
	mu   sync.Mutex
	Sent []Message
}

var _ Sender = (*LogSender)(nil)

func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.mu.Lock()
	l.Sent = append(l.Sent, msg)
	l.mu.Unlock()

	logger.Info("dry run: email not sent", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.HTML))
	return nil
}
