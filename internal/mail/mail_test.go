package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

type captureQueue struct {
	body  string
	attrs map[string]string
	err   error
}

func (q *captureQueue) Send(ctx context.Context, body string, attrs map[string]string) error {
	q.body, q.attrs = body, attrs
	return q.err
}

func TestSMTPSender_RendersAndSends(t *testing.T) {
	s := NewSMTPSender("smtp.local", 2525, "user", "pw", "shop@v-disk.local")
	s.nowFunc = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	s.sendFunc = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err := s.Send(context.Background(), Message{To: "ana@x.io", Subject: "Hello", Body: "line1\nline2"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.local:2525" || gotFrom != "shop@v-disk.local" || len(gotTo) != 1 || gotTo[0] != "ana@x.io" {
		t.Fatalf("envelope mismatch: %s %s %v", gotAddr, gotFrom, gotTo)
	}
	for _, want := range []string{"Subject: Hello\r\n", "To: ana@x.io\r\n", "\r\n\r\nline1\nline2"} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSMTPSender_Rejects(t *testing.T) {
	s := NewSMTPSender("smtp.local", 25, "", "", "shop@v-disk.local")
	s.sendFunc = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("unreachable") }

	if err := s.Send(context.Background(), Message{Subject: "x"}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
	if err := s.Send(context.Background(), Message{To: "a@x.io", Subject: "x\r\nBcc: evil@x.io"}); err == nil {
		t.Fatalf("expected header injection to be rejected")
	}
	if err := s.Send(context.Background(), Message{To: "a@x.io"}); err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Fatalf("expected relay error, got %v", err)
	}
}

func TestQueueSender_RoundTrip(t *testing.T) {
	q := &captureQueue{}
	s := NewQueueSender(q, "shop@v-disk.local")

	if err := s.Send(context.Background(), Message{To: "ana@x.io", Subject: "S", Body: "B", Kind: "verify"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if q.attrs["kind"] != "verify" {
		t.Fatalf("kind attribute missing: %v", q.attrs)
	}
	m, err := Decode(q.body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.From != "shop@v-disk.local" || m.To != "ana@x.io" || m.Body != "B" {
		t.Fatalf("unexpected job: %+v", m)
	}

	if _, err := Decode(`{"subject":"no recipient"}`); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
	q.err = errors.New("sqs down")
	if err := s.Send(context.Background(), Message{To: "a@x.io"}); err == nil {
		t.Fatalf("expected enqueue error")
	}
}
