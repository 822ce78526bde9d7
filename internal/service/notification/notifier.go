package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var (
	_ Notifier = (*EmailNotifier)(nil)
	_ Notifier = (*WebhookNotifier)(nil)
	_ Notifier = ConsoleNotifier{}
	_ Notifier = (*Suppressed)(nil)
)

type EmailNotifier struct {
	svc EmailService
	to  string
}

func NewEmailNotifier(svc EmailService, to string) *EmailNotifier {
	return &EmailNotifier{svc: svc, to: to}
}

func (n *EmailNotifier) Notify(ctx context.Context, subject, body string) error {
	if n.to == "" {
		return &CredentialError{Channel: "email", Missing: []string{"recipient"}}
	}
	if err := n.svc.SendText(ctx, n.to, subject, body); err != nil {
		return err
	}
	slog.Info("email sent", "to", n.to, "subject", subject)
	return nil
}

type WebhookNotifier struct {
	svc WebhookService
	url string
}

func NewWebhookNotifier(svc WebhookService, url string) *WebhookNotifier {
	return &WebhookNotifier{svc: svc, url: url}
}

func (n *WebhookNotifier) Notify(ctx context.Context, subject, body string) error {
	if n.url == "" {
		return &CredentialError{Channel: "webhook", Missing: []string{"url"}}
	}
	return n.svc.Send(ctx, n.url, map[string]any{
		"subject": subject,
		"body":    body,
	})
}

type ConsoleNotifier struct{}

func (ConsoleNotifier) Notify(ctx context.Context, subject, body string) error {
	fmt.Printf("%s\n%s\n", subject, body)
	return nil
}

// Suppressed 全局静默, 调用为空操作但可观测
type Suppressed struct {
	next  Notifier
	count atomic.Int64
}

func Suppress(next Notifier) *Suppressed {
	return &Suppressed{next: next}
}

func (s *Suppressed) Notify(ctx context.Context, subject, body string) error {
	s.count.Add(1)
	slog.Info("notification suppressed", "channel", fmt.Sprintf("%T", s.next), "subject", subject)
	return nil
}

// Count 被静默的调用次数
func (s *Suppressed) Count() int64 {
	return s.count.Load()
}

// IsSuppressed 判断通知器是否处于静默模式
func IsSuppressed(n Notifier) bool {
	_, ok := n.(*Suppressed)
	return ok
}
