package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"catalog/internal/pkg/errors"
)

// Attachment is a file sent with a message. A non-empty ContentID embeds the
// file inline so the HTML body can reference it as cid:<ContentID>.
type Attachment struct {
	Path      string
	Name      string
	ContentID string
}

// Message is a rendered email ready for a Transport.
type Message struct {
	From        string
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Transport sends messages.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures SMTPTransport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	PoolSize int
	Timeout  time.Duration
	// PlainText disables STARTTLS, for local relays such as Mailpit.
	PlainText bool
}

// SMTPTransport keeps up to PoolSize authenticated SMTP sessions open and
// sends each message on a free one. A session is dialled on first use and
// redialled after the server drops it.
type SMTPTransport struct {
	pool chan *smtpSession
}

type smtpSession struct {
	client    *mail.Client
	connected bool
}

func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	policy := mail.TLSMandatory
	if cfg.PlainText {
		policy = mail.NoTLS
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPortPolicy(policy),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	t := &SMTPTransport{pool: make(chan *smtpSession, cfg.PoolSize)}
	for i := 0; i < cfg.PoolSize; i++ {
		c, err := mail.NewClient(cfg.Host, opts...)
		if err != nil {
			return nil, fmt.Errorf("create smtp client: %w", err)
		}
		t.pool <- &smtpSession{client: c}
	}
	return t, nil
}

// Send builds msg and delivers it on the next free session.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m, err := build(msg)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "delivery.build", "invalid message")
	}

	var s *smtpSession
	select {
	case s = <-t.pool:
	case <-ctx.Done():
		return errors.Delivery(ctx.Err(), "delivery.send")
	}
	defer func() { t.pool <- s }()

	if err := s.send(ctx, m); err != nil {
		return errors.Delivery(err, "delivery.send")
	}
	return nil
}

// send delivers m, dialling when the session is closed. A session the
// server dropped fails the NOOP check before any data is written and is
// redialled once. Any other failure closes the session.
func (s *smtpSession) send(ctx context.Context, m *mail.Msg) error {
	for attempt := 0; ; attempt++ {
		if !s.connected {
			if err := s.client.DialWithContext(ctx); err != nil {
				return err
			}
			s.connected = true
		}

		err := s.client.Send(m)
		if err == nil {
			return nil
		}
		s.close()
		if m.IsDelivered() {
			// Only the RSET after DATA failed.
			return nil
		}
		var sendErr *mail.SendError
		if attempt > 0 || !errors.As(err, &sendErr) || sendErr.Reason != mail.ErrConnCheck {
			return err
		}
	}
}

func (s *smtpSession) close() {
	if s.connected {
		_ = s.client.Close()
		s.connected = false
	}
}

// Close waits for in-flight sends and closes every open session.
func (t *SMTPTransport) Close(ctx context.Context) error {
	for i := 0; i < cap(t.pool); i++ {
		select {
		case s := <-t.pool:
			s.close()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	for _, a := range msg.Attachments {
		if a.ContentID != "" {
			m.EmbedFile(a.Path, mail.WithFileName(a.Name), mail.WithFileContentID(a.ContentID))
			continue
		}
		m.AttachFile(a.Path, mail.WithFileName(a.Name))
	}
	return m, nil
}
