package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/fplcoach/pkg/config"
)

// Mailer delivers a plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends emails via SMTP.
type SMTPMailer struct {
	addr   string
	auth   smtp.Auth
	sender string
}

func NewSMTPMailer(cfg cfgpkg.MailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	}
	sender := cfg.Sender
	if sender == "" {
		sender = "no-reply@" + cfg.SMTPHost
	}
	return &SMTPMailer{
		addr:   fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth:   auth,
		sender: sender,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return smtp.SendMail(m.addr, m.auth, m.sender, []string{to}, BuildMessage(m.sender, to, subject, body))
}

// BuildMessage renders RFC 5322 headers and a plain-text body.
func BuildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, to, sanitizeHeader(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogMailer only logs messages. Used when no SMTP host is configured.
type LogMailer struct {
	log *zap.SugaredLogger
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.log.Infow("mail delivery disabled, message dropped", "to", to, "subject", subject)
	return nil
}

func NewMailer(cfg *cfgpkg.Config, log *zap.SugaredLogger) Mailer {
	if cfg.Mail.SMTPHost == "" {
		return &LogMailer{log: log}
	}
	return NewSMTPMailer(cfg.Mail)
}

var Module = fx.Options(
	fx.Provide(NewMailer),
)
