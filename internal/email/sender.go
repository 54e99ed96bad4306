// Package email delivers sign-in links.
package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultSMTPAddr = "localhost:1025"
	DefaultFrom     = "no-reply@img2prompt.local"
)

var ErrNoRecipient = errors.New("email: recipient required")

type Sender interface {
	Send(to, subject, html string) error
}

// StdoutSender logs messages instead of delivering them. Used when no SMTP
// relay is configured.
type StdoutSender struct {
	Log zerolog.Logger
}

func (s StdoutSender) Send(to, subject, html string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	s.Log.Info().Str("to", to).Str("subject", subject).Str("body", html).Msg("email")
	return nil
}

// SMTPSender sends unauthenticated mail through a local relay such as MailHog.
type SMTPSender struct {
	Addr string
	From string
}

func NewSMTPSender(addr, from string) *SMTPSender {
	if addr == "" {
		addr = DefaultSMTPAddr
	}
	if from == "" {
		from = DefaultFrom
	}
	return &SMTPSender{Addr: addr, From: from}
}

func (s *SMTPSender) Send(to, subject, html string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipient
	}
	if err := smtp.SendMail(s.Addr, nil, s.From, []string{to}, buildMessage(s.From, to, subject, html, time.Now())); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, html string, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(subject, "\n", " "))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
