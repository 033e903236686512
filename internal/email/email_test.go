package email

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	delay time.Duration
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatcher_SendsAsyncAndDrainsOnClose(t *testing.T) {
	sender := &recordingSender{delay: 20 * time.Millisecond}
	d := NewDispatcher(zap.NewNop(), sender, time.Second)

	for i := 0; i < 5; i++ {
		d.Notify(context.Background(), Message{To: "user@example.com", Subject: "hi"})
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sender.count() != 5 {
		t.Fatalf("expected 5 sent messages, got %d", sender.count())
	}

	d.Notify(context.Background(), Message{To: "late@example.com"})
	time.Sleep(30 * time.Millisecond)
	if sender.count() != 5 {
		t.Fatalf("closed dispatcher must drop messages")
	}
}

func TestDispatcher_IgnoresCallerCancellationAndErrors(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down"), delay: 10 * time.Millisecond}
	d := NewDispatcher(zap.NewNop(), sender, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, Message{To: "user@example.com"})
	cancel()

	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("expected send attempted despite cancelled request, got %d", sender.count())
	}
}

func TestDispatcher_CloseHonoursDeadline(t *testing.T) {
	sender := &recordingSender{delay: time.Second}
	d := NewDispatcher(zap.NewNop(), sender, 5*time.Second)
	d.Notify(context.Background(), Message{To: "slow@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTemplates_RenderOTPAndBonus(t *testing.T) {
	tpl := NewTemplates("PaisaPe")
	tpl.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	msg, err := tpl.OTPVerification("asha@example.com", "<Asha>", "123456", 10*time.Minute)
	if err != nil {
		t.Fatalf("render otp: %v", err)
	}
	if msg.To != "asha@example.com" || msg.Subject != "OTP Verification - PaisaPe" {
		t.Fatalf("unexpected headers: %+v", msg)
	}
	if !strings.Contains(msg.HTML, "123456") || !strings.Contains(msg.HTML, "valid for 10 minutes") {
		t.Fatalf("otp html missing code or ttl")
	}
	if strings.Contains(msg.HTML, "<Asha>") || !strings.Contains(msg.HTML, "&lt;Asha&gt;") {
		t.Fatalf("expected escaped name in html")
	}
	if !strings.Contains(msg.HTML, "&copy; 2025 PaisaPe") {
		t.Fatalf("expected footer year")
	}
	if !strings.HasSuffix(msg.Text, "123456") {
		t.Fatalf("unexpected text body %q", msg.Text)
	}

	bonus, err := tpl.ReferralBonus("ravi@example.com", "Ravi", "Meera", 100)
	if err != nil {
		t.Fatalf("render bonus: %v", err)
	}
	if !strings.Contains(bonus.HTML, "Meera") || !strings.Contains(bonus.Text, "₹100") {
		t.Fatalf("unexpected bonus email: %+v", bonus)
	}
}

func TestBuildMessage(t *testing.T) {
	raw := buildMessage("no-reply@paisape.in", "PaisaPe", Message{
		To:      "asha@example.com",
		Subject: "Hello",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	}, "b1")

	for _, want := range []string{
		"From: PaisaPe <no-reply@paisape.in>\r\n",
		"To: asha@example.com\r\n",
		"Content-Type: multipart/alternative; boundary=\"b1\"",
		"--b1\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\nhi\r\n",
		"--b1\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n<p>hi</p>\r\n",
		"--b1--\r\n",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected %q in message:\n%s", want, raw)
		}
	}

	plain := buildMessage("no-reply@paisape.in", "", Message{To: "a@b.c", Subject: "s", Text: "body"}, "unused")
	if !strings.HasPrefix(plain, "From: no-reply@paisape.in\r\n") || !strings.HasSuffix(plain, "\r\n\r\nbody") {
		t.Fatalf("unexpected plain message:\n%s", plain)
	}
}

func TestDisabledSender(t *testing.T) {
	if err := NewDisabledSender("off").Send(context.Background(), Message{}); err == nil || err.Error() != "off" {
		t.Fatalf("expected configured reason, got %v", err)
	}
}
