package notifier

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

func TestEmailBuildsMIMEMessage(t *testing.T) {
	t.Parallel()
	e := NewEmail(EmailConfig{Host: "mail.example.com", Port: 587, From: "guri@example.com"}, logx.Nop())

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	err := e.Send(context.Background(), Message{
		To:      "asha@example.com",
		Subject: "Reminder!",
		Body:    "<h1>Hey</h1>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "mail.example.com:587" {
		t.Fatalf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "asha@example.com" {
		t.Fatalf("to = %v", gotTo)
	}
	for _, want := range []string{
		"From: guri@example.com\r\n",
		"To: asha@example.com\r\n",
		"Subject: Reminder!\r\n",
		"Content-Type: text/html",
		"\r\n\r\n<h1>Hey</h1>",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestEmailRejectsEmptyRecipient(t *testing.T) {
	t.Parallel()
	e := NewEmail(EmailConfig{Host: "mail.example.com", Port: 587, From: "guri@example.com"}, logx.Nop())
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send called for empty recipient")
		return nil
	}
	if err := e.Send(context.Background(), Message{Subject: "x"}); err == nil {
		t.Fatal("want error for empty recipient")
	}
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Send(context.Context, Message) error {
	s.calls++
	return s.err
}

func TestFanoutAttemptsAllTargets(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	a := &stubNotifier{err: boom}
	b := &stubNotifier{}

	f := NewFanout(logx.Nop(), a, b)
	err := f.Send(context.Background(), Message{To: "asha@example.com"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", a.calls, b.calls)
	}
}
