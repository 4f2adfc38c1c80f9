package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"
	"time"

	"github.com/redmonkez12/go-events-app/internal/logging"
	"github.com/redmonkez12/go-events-app/internal/metrics"
)

//go:embed templates/*
var templateFS embed.FS

// Mail kinds used as metric labels
const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
)

const (
	verificationSubject  = "Verify your email address"
	passwordResetSubject = "Reset your password"
)

type mailTemplate struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

type templateData struct {
	Name      string
	Link      string
	ExpiresIn string
}

type Service struct {
	sender          Sender
	from            string
	frontendURL     string
	verificationTTL time.Duration
	templates       map[string]mailTemplate
	logger          *logging.Logger
}

func NewService(sender Sender, from, frontendURL string, verificationTTL time.Duration, logger *logging.Logger) (*Service, error) {
	templates := make(map[string]mailTemplate, 2)
	for kind, name := range map[string]string{
		KindVerification:  "verification",
		KindPasswordReset: "password_reset",
	} {
		h, err := htmltemplate.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", name, err)
		}
		t, err := texttemplate.ParseFS(templateFS, "templates/"+name+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", name, err)
		}
		templates[kind] = mailTemplate{html: h, text: t}
	}

	return &Service{
		sender:          sender,
		from:            from,
		frontendURL:     frontendURL,
		verificationTTL: verificationTTL,
		templates:       templates,
		logger:          logger,
	}, nil
}

// VerificationLink is the frontend page that exchanges token for a session
func (s *Service) VerificationLink(token string) string {
	return s.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

// SendVerificationEmail sends the account activation link
// This method is designed to be called in a goroutine
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	data := templateData{
		Name:      name,
		Link:      s.VerificationLink(token),
		ExpiresIn: humanDuration(s.verificationTTL),
	}
	return s.send(ctx, KindVerification, toEmail, verificationSubject, data)
}

// SendPasswordResetEmail sends a password reset link to the user
// This method is designed to be called in a goroutine
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	data := templateData{
		Link:      s.frontendURL + "/reset-password?token=" + url.QueryEscape(token),
		ExpiresIn: humanDuration(time.Hour),
	}
	return s.send(ctx, KindPasswordReset, toEmail, passwordResetSubject, data)
}

func (s *Service) send(ctx context.Context, kind, to, subject string, data templateData) error {
	msg, err := s.render(kind, to, subject, data)
	if err != nil {
		metrics.EmailsSent.WithLabelValues(kind, metrics.ResultFailure).Inc()
		s.logger.Error("failed to render email template", "kind", kind, "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		metrics.EmailsSent.WithLabelValues(kind, metrics.ResultFailure).Inc()
		s.logger.Error("failed to send email", "kind", kind, "email", to, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	metrics.EmailsSent.WithLabelValues(kind, metrics.ResultSuccess).Inc()
	s.logger.Info("email sent", "kind", kind, "email", to)
	return nil
}

func (s *Service) render(kind, to, subject string, data templateData) (Message, error) {
	tmpl, ok := s.templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail kind %q", kind)
	}

	var html, text bytes.Buffer
	if err := tmpl.html.ExecuteTemplate(&html, "layout", data); err != nil {
		return Message{}, fmt.Errorf("execute html template: %w", err)
	}
	if err := tmpl.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("execute text template: %w", err)
	}

	return Message{
		From:    s.from,
		To:      to,
		Subject: subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// humanDuration renders whole hours or minutes, e.g. "8 hours" or "1 hour"
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
