package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// ErrMailerDisabled is returned when no SMTP host is configured.
var ErrMailerDisabled = errors.New("email delivery is not configured")

// Message is a single HTML email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Mailer sends one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	ReplyTo   string
}

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewMailer returns an SMTPMailer, or a DisabledMailer when cfg.Host is empty.
func NewMailer(cfg SMTPConfig) Mailer {
	if cfg.Host == "" {
		return DisabledMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	mm := mail.NewMsg()
	if err := mm.FromFormat(m.cfg.FromName, m.cfg.FromEmail); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := mm.AddToFormat(msg.ToName, msg.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	if m.cfg.ReplyTo != "" {
		if err := mm.ReplyTo(m.cfg.ReplyTo); err != nil {
			return fmt.Errorf("set reply-to: %w", err)
		}
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextHTML, msg.HTML)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return nil
}

// DisabledMailer rejects every message with ErrMailerDisabled.
type DisabledMailer struct{}

func (DisabledMailer) Send(context.Context, Message) error { return ErrMailerDisabled }
