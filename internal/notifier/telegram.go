package notifier

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

type TelegramConfig struct {
	Token  string
	ChatID int64
}

// Telegram mirrors reminders into a single chat. Send-only: the bot is
// never started with a poller, it just pushes messages.
type Telegram struct {
	cfg TelegramConfig
	bot *tele.Bot
	log logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{cfg: cfg, bot: b, log: log.With(logx.String("comp", "telegram"))}, nil
}

func (t *Telegram) Send(ctx context.Context, m Message) error {
	// Telegram HTML is a small subset of what the email body uses, so send
	// the subject plus a plain-text rendering of the body.
	text := "<b>" + m.Subject + "</b>\n" + stripTags(m.Body)
	_, err := t.bot.Send(tele.ChatID(t.cfg.ChatID), text, tele.ModeHTML)
	if err != nil {
		return err
	}
	t.log.Debug("telegram mirror sent", logx.Int64("chat_id", t.cfg.ChatID))
	return nil
}

// stripTags drops HTML tags and collapses the result into plain lines.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
