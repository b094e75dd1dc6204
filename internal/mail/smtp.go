// Package mail sends outreach email over SMTP, wrapping net/smtp with the
// three encryption modes the settings allow: SSL (implicit TLS),
// TLS (STARTTLS), and NONE.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Sentinel errors classifying SMTP failures for alerting.
var (
	ErrAuth      = errors.New("smtp authentication failed")
	ErrConnect   = errors.New("smtp connection failed")
	ErrRecipient = errors.New("recipient refused")
)

// Mailer sends a single message using the campaign SMTP settings.
type Mailer interface {
	Send(ctx context.Context, settings *model.Settings, msg Message) error
}

// SMTPMailer implements Mailer over net/smtp.
type SMTPMailer struct {
	dialTimeout time.Duration
	now         func() time.Time
}

// Option configures the mailer.
type Option func(*SMTPMailer)

// WithDialTimeout overrides the default 30s connection timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(m *SMTPMailer) {
		m.dialTimeout = d
	}
}

// WithClock overrides the timestamp source used in message headers.
func WithClock(now func() time.Time) Option {
	return func(m *SMTPMailer) {
		m.now = now
	}
}

// NewSMTPMailer creates a mailer.
func NewSMTPMailer(opts ...Option) *SMTPMailer {
	m := &SMTPMailer{
		dialTimeout: 30 * time.Second,
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, settings *model.Settings, msg Message) error {
	if !settings.SMTPConfigured() {
		return eris.New("mail: smtp settings incomplete")
	}

	addr := net.JoinHostPort(settings.SMTPHost, strconv.Itoa(settings.SMTPPort))

	client, err := m.connect(ctx, addr, settings)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	if settings.SMTPUsername != "" {
		auth := smtp.PlainAuth("", settings.SMTPUsername, settings.SMTPPassword, settings.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return eris.Wrap(errors.Join(ErrAuth, err), "mail: auth")
		}
	}

	if err := client.Mail(settings.FromEmail); err != nil {
		return eris.Wrap(err, "mail: mail from")
	}
	if err := client.Rcpt(msg.To); err != nil {
		return eris.Wrapf(errors.Join(ErrRecipient, err), "mail: rcpt %s", msg.To)
	}

	w, err := client.Data()
	if err != nil {
		return eris.Wrap(err, "mail: data")
	}
	if _, err := w.Write(compose(settings.FromName, settings.FromEmail, msg, m.now())); err != nil {
		return eris.Wrap(err, "mail: write body")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "mail: close body")
	}

	return eris.Wrap(client.Quit(), "mail: quit")
}

func (m *SMTPMailer) connect(ctx context.Context, addr string, settings *model.Settings) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: m.dialTimeout}

	switch strings.ToUpper(settings.SMTPEncryption) {
	case "SSL":
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: settings.SMTPHost},
		}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, eris.Wrap(errors.Join(ErrConnect, err), "mail: tls dial")
		}
		client, err := smtp.NewClient(conn, settings.SMTPHost)
		if err != nil {
			conn.Close()
			return nil, eris.Wrap(errors.Join(ErrConnect, err), "mail: smtp handshake")
		}
		return client, nil

	case "TLS":
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, eris.Wrap(errors.Join(ErrConnect, err), "mail: dial")
		}
		client, err := smtp.NewClient(conn, settings.SMTPHost)
		if err != nil {
			conn.Close()
			return nil, eris.Wrap(errors.Join(ErrConnect, err), "mail: smtp handshake")
		}
		if err := client.StartTLS(&tls.Config{ServerName: settings.SMTPHost}); err != nil {
			client.Close()
			return nil, eris.Wrap(errors.Join(ErrConnect, err), "mail: starttls")
		}
		return client, nil

	case "NONE":
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, eris.Wrap(errors.Join(ErrConnect, err), "mail: dial")
		}
		client, err := smtp.NewClient(conn, settings.SMTPHost)
		if err != nil {
			conn.Close()
			return nil, eris.Wrap(errors.Join(ErrConnect, err), "mail: smtp handshake")
		}
		return client, nil

	default:
		return nil, eris.Errorf("mail: unknown encryption mode %q", settings.SMTPEncryption)
	}
}
