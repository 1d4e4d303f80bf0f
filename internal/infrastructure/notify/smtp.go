package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"trainingreg/internal/ports/output"
)

var _ output.Notifier = (*SMTPNotifier)(nil)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPNotifier sends plain-text mail through an SMTP relay. STARTTLS is used
// whenever the server offers it.
type SMTPNotifier struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

func (n *SMTPNotifier) Send(ctx context.Context, msg output.Message) error {
	if err := ctx.Err(); err != nil {
		return &output.DeliveryError{To: msg.To, Err: err}
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	var auth smtp.Auth
	if n.cfg.User != "" {
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
	}
	if err := n.sendMail(addr, auth, n.cfg.From, []string{msg.To}, n.compose(msg)); err != nil {
		return &output.DeliveryError{To: msg.To, Err: fmt.Errorf("smtp send: %w", err)}
	}
	return nil
}

func (n *SMTPNotifier) compose(msg output.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
