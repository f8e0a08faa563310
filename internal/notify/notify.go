// Package notify tells a message sender that an admin has replied.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sadopc/greencampus/internal/inbox"
)

type Notifier interface {
	NotifyReply(ctx context.Context, msg inbox.Message, reply string) error
}

var ErrNotConfigured = errors.New("smtp not configured")

// Nop drops every notification and reports ErrNotConfigured.
type Nop struct{}

func (Nop) NotifyReply(context.Context, inbox.Message, string) error { return ErrNotConfigured }

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout bounds a whole delivery, dial to QUIT. Zero means 10s.
	Timeout time.Duration
}

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP sends reply notifications through a mail relay using STARTTLS when
// the server offers it.
type SMTP struct {
	cfg  SMTPConfig
	send sendFunc
	now  func() time.Time
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &SMTP{cfg: cfg, now: time.Now}
	s.send = s.sendMail
	return s
}

// New returns an SMTP notifier when a host is configured, otherwise Nop.
func New(cfg SMTPConfig) Notifier {
	if cfg.Host == "" {
		return Nop{}
	}
	return NewSMTP(cfg)
}

func (s *SMTP) NotifyReply(ctx context.Context, msg inbox.Message, reply string) error {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	body := s.compose(msg, reply)
	if err := s.send(ctx, addr, auth, s.cfg.From, []string{msg.UserEmail}, body); err != nil {
		return fmt.Errorf("send reply notification to %s: %w", msg.UserEmail, err)
	}
	return nil
}

// sendMail delivers msg the way smtp.SendMail does, but gives up when ctx
// ends or the configured timeout passes.
func (s *SMTP) sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	// Unblocks any pending read or write if ctx is cancelled early.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *SMTP) compose(msg inbox.Message, reply string) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k + ": " + sanitizeHeader(v) + "\r\n")
	}
	header("From", s.cfg.From)
	header("To", msg.UserEmail)
	header("Subject", "Re: "+msg.Subject)
	header("Date", s.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	b.WriteString("\r\n")

	name := msg.UserName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n", name)
	b.WriteString("Thank you for reaching out to Green Campus Dashboard.\r\n\r\n")
	b.WriteString("Here is the admin's reply to your inquiry:\r\n\r\n")
	b.WriteString(strings.ReplaceAll(reply, "\n", "\r\n"))
	b.WriteString("\r\n\r\nIf you have any further questions, feel free to contact us again.\r\n\r\n")
	b.WriteString("Best regards,\r\nGreen Campus Team\r\n")
	return b.Bytes()
}

// sanitizeHeader strips line breaks so user input cannot add headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
