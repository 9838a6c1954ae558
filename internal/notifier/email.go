package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"golang.org/x/time/rate"

	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	RatePerSec int // outbound send rate (default 1)
}

// Email sends messages over SMTP. Sends are rate limited so a burst of
// fired reminders cannot trip the upstream relay's throttling.
type Email struct {
	cfg     EmailConfig
	limiter *rate.Limiter
	log     logx.Logger

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(cfg EmailConfig, log logx.Logger) *Email {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Email{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log.With(logx.String("comp", "email")),
		send:    smtp.SendMail,
	}
}

func (e *Email) Send(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("email: empty recipient")
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)

	if err := e.send(addr, auth, e.cfg.From, []string{m.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	e.log.Debug("email sent", logx.String("to", m.To), logx.String("subject", m.Subject))
	return nil
}
