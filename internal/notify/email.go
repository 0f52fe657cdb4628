package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

var emailTracer = otel.Tracer("healthvoice.internal.notify")

// ErrEmailNotConfigured is returned by a sender built without credentials.
var ErrEmailNotConfigured = errors.New("notify: email sender not configured")

// EmailSender delivers a single e-mail.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one outgoing e-mail. Category tags it for provider-side
// reporting and RefID is echoed back in delivery webhooks.
type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	Body     string
	HTML     string
	Category string
	RefID    string
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig holds SendGrid credentials and the sender identity.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender sends e-mail through the SendGrid v3 API. Throttled or
// 5xx answers are retried once after retryDelay.
type SendGridSender struct {
	client     sendGridAPI
	from       *mail.Email
	retryDelay time.Duration
	logger     *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "HealthVoice"
	}
	return &SendGridSender{
		client:     sendgrid.NewSendClient(cfg.APIKey),
		from:       mail.NewEmail(cfg.FromName, cfg.FromEmail),
		retryDelay: time.Second,
		logger:     logger,
	}
}

func (s *SendGridSender) build(msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	if msg.RefID != "" {
		p.SetCustomArg("ref_id", msg.RefID)
	}
	m.AddPersonalizations(p)

	m.AddContent(mail.NewContent("text/plain", msg.Body))
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}
	return m
}

// Send delivers msg, retrying once on 429 or a server error.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return ErrEmailNotConfigured
	}
	ctx, span := emailTracer.Start(ctx, "notify.sendgrid.send")
	defer span.End()
	span.SetAttributes(attribute.String("healthvoice.email_category", msg.Category))

	message := s.build(msg)
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := s.client.SendWithContext(ctx, message)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("notify: sendgrid send failed: %w", err)
		case resp.StatusCode == 429 || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			s.logger.Error("sendgrid rejected email", "status", resp.StatusCode, "body", resp.Body, "ref_id", msg.RefID)
			err := fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
			span.RecordError(err)
			return err
		default:
			s.logger.Info("email sent via sendgrid", "ref_id", msg.RefID, "category", msg.Category, "status", resp.StatusCode, "attempt", attempt)
			return nil
		}

		s.logger.Warn("sendgrid send attempt failed", "attempt", attempt, "error", lastErr, "ref_id", msg.RefID)
		if attempt == 2 {
			break
		}
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	span.RecordError(lastErr)
	return lastErr
}

// LogEmailSender records the message in the log instead of sending it.
type LogEmailSender struct {
	logger *logging.Logger
}

func NewLogEmailSender(logger *logging.Logger) *LogEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("email not sent, no provider configured", "subject", msg.Subject, "category", msg.Category, "ref_id", msg.RefID)
	return nil
}
