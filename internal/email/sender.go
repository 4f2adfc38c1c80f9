package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/redmonkez12/go-events-app/internal/config"
	"github.com/redmonkez12/go-events-app/internal/logging"
)

// Message is a rendered mail ready to send
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the sender for the configured provider
func NewSender(cfg config.EmailConfig, logger *logging.Logger) (Sender, error) {
	switch cfg.Provider {
	case config.MailProviderSMTP:
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword), nil
	case config.MailProviderResend:
		return NewResendSender(resend.NewClient(cfg.ResendAPIKey), logger), nil
	case config.MailProviderLog:
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// ResendSender sends through the Resend HTTP API
type ResendSender struct {
	client *resend.Client
	logger *logging.Logger
}

func NewResendSender(client *resend.Client, logger *logging.Logger) *ResendSender {
	return &ResendSender{client: client, logger: logger}
}

// Send does not retry; rate limit errors are wrapped with the limit details
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn("resend rate limit exceeded",
				"limit", rateLimitErr.Limit,
				"remaining", rateLimitErr.Remaining,
				"reset", rateLimitErr.Reset)
			return fmt.Errorf("email rate limit exceeded (limit: %s, resets in: %s seconds): %w",
				rateLimitErr.Limit, rateLimitErr.Reset, err)
		}
		return fmt.Errorf("resend API error: %w", err)
	}

	s.logger.Info("email sent via Resend", "email_id", sent.Id, "to", msg.To)
	return nil
}

// LogSender writes mails to the log instead of delivering them
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not delivered (log provider)",
		"to", msg.To,
		"subject", msg.Subject,
		"text", strings.TrimSpace(msg.Text),
		"logged_at", time.Now().UTC().Format(time.RFC3339))
	return nil
}
