package notify

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/communitymeet/backend/config"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// SanitizeRecipients splits valid addresses from malformed ones. Malformed
// addresses are excluded from the send and returned for audit logging.
func SanitizeRecipients(addrs []string) (valid, rejected []string) {
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if emailPattern.MatchString(a) {
			valid = append(valid, a)
		} else {
			rejected = append(rejected, a)
		}
	}
	return valid, rejected
}

// Mailer sends notification mail over SMTP.
type Mailer struct {
	cfg    config.EmailConfig
	logger *zap.Logger
}

// NewMailer creates an SMTP mailer.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// Send delivers a plain-text mail. recipients must already be sanitized.
func (m *Mailer) Send(recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}
	msg := m.headers(recipients, subject)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	msg.WriteString(wrapBase64(body))
	return m.deliver(recipients, msg.String())
}

// SendWithCalendar delivers a multipart mail carrying the body and an
// iCalendar invite part.
func (m *Mailer) SendWithCalendar(recipients []string, subject, body, ics string) error {
	if len(recipients) == 0 {
		return nil
	}
	const boundary = "=-communitymeet-invite"
	msg := m.headers(recipients, subject)
	msg.WriteString("Content-Type: multipart/mixed; boundary=\"" + boundary + "\"\r\n\r\n")

	msg.WriteString("--" + boundary + "\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	msg.WriteString(wrapBase64(body))
	msg.WriteString("\r\n")

	msg.WriteString("--" + boundary + "\r\n")
	msg.WriteString("Content-Type: text/calendar; method=REQUEST; charset=UTF-8\r\n")
	msg.WriteString("Content-Disposition: attachment; filename=\"invite.ics\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	msg.WriteString(wrapBase64(ics))
	msg.WriteString("\r\n")

	msg.WriteString("--" + boundary + "--\r\n")
	return m.deliver(recipients, msg.String())
}

func (m *Mailer) headers(recipients []string, subject string) *strings.Builder {
	var b strings.Builder
	from := m.cfg.FromAddress
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.cfg.FromName), m.cfg.FromAddress)
	}
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(recipients, ", ") + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	return &b
}

func (m *Mailer) deliver(recipients []string, msg string) error {
	if m.cfg.SMTPHost == "" {
		m.logger.Warn("smtp host not configured, dropping mail", zap.Int("recipients", len(recipients)))
		return nil
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var a smtp.Auth
	if m.cfg.SMTPUser != "" {
		a = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, a, m.cfg.FromAddress, recipients, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Info("mail sent", zap.Int("recipients", len(recipients)))
	return nil
}

func wrapBase64(s string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	var b strings.Builder
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	b.WriteString("\r\n")
	return b.String()
}
