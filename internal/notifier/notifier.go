// Package notifier delivers user-facing reminder notifications.
//
// Email is the primary channel (the reminder recipient is a user's email
// address). An optional Telegram mirror copies every reminder into an ops
// chat, which is handy while running a small deployment for yourself.
//
// Delivery is fire-and-forget from the coordinator's perspective: failures
// are logged and reported as an error value, but callers never fail a
// request because a notification could not be sent.
package notifier

import (
	"context"
	"errors"

	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

// Message is one notification to a single recipient.
type Message struct {
	To      string // recipient email
	Subject string
	Body    string // HTML
}

// Notifier sends a message over one channel.
type Notifier interface {
	Send(ctx context.Context, m Message) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }

// Fanout sends to every configured channel and reports the combined error.
// All channels are attempted regardless of individual failures.
type Fanout struct {
	targets []Notifier
	log     logx.Logger
}

func NewFanout(log logx.Logger, targets ...Notifier) *Fanout {
	return &Fanout{targets: targets, log: log.With(logx.String("comp", "notifier"))}
}

func (f *Fanout) Send(ctx context.Context, m Message) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.Send(ctx, m); err != nil {
			f.log.Warn("notification send failed", logx.String("to", m.To), logx.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
