package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
	"github.com/Prekzursil/event-link-sub001/internal/infra/logger"
)

const (
	sendAttempts       = 3
	retryBackoff       = 2 * time.Second
	defaultSendTimeout = 10 * time.Second
)

// SMTPMailer delivers password reset links over SMTP.
type SMTPMailer struct {
	cfg    config.MailSettings
	logger *zap.Logger
}

// NewSMTPMailer constructs an SMTP-backed reset mailer.
func NewSMTPMailer(cfg config.MailSettings, log *zap.Logger) *SMTPMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, logger: log}
}

// SendPasswordReset composes and delivers the reset email. Transient failures
// are retried with a growing backoff before the error is surfaced.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	msg := m.buildMessage(email, token)
	masked := logger.MaskEmail(email)

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = m.send(email, msg)
		if lastErr == nil {
			m.logger.Info("password reset email sent",
				zap.String("email", masked),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		m.logger.Warn("password reset email delivery failed",
			zap.String("email", masked),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if attempt < sendAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
	}

	return fmt.Errorf("send password reset email: %w", lastErr)
}

func (m *SMTPMailer) send(recipient string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	timeout := m.cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial smtp server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("start tls: %w", err)
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}

	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}

	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}

	return client.Quit()
}

func (m *SMTPMailer) resetLink(token string) string {
	base := strings.TrimRight(m.cfg.ResetURL, "?&")
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%stoken=%s", base, separator, url.QueryEscape(token))
}

func (m *SMTPMailer) buildMessage(recipient, token string) []byte {
	link := m.resetLink(token)
	date := time.Now().Format(time.RFC1123Z)

	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"We received a request to reset the password for your EventLink account.\r\n\r\n"+
			"Open the link below to choose a new password:\r\n\r\n"+
			"%s\r\n\r\n"+
			"The link expires in one hour and can be used only once.\r\n\r\n"+
			"If you did not request a password reset, you can safely ignore this email.\r\n",
		link,
	)

	return fmt.Appendf(nil,
		"Date: %s\r\n"+
			"To: %s\r\n"+
			"From: EventLink <%s>\r\n"+
			"Subject: Reset your EventLink password\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=\"utf-8\"\r\n"+
			"\r\n"+
			"%s",
		date, recipient, m.cfg.From, body,
	)
}

var _ port.ResetMailer = (*SMTPMailer)(nil)
