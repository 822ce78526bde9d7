package notification

import (
	"context"
	"fmt"
	"strings"
)

type EmailService interface {
	SendText(ctx context.Context, to, subject, body string) error
	SendHTML(ctx context.Context, to, subject, body string) error
}

type WebhookService interface {
	Send(ctx context.Context, url string, data map[string]any) error
}

// Notifier 发送一条告警消息, at-most-once, 不重试
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// CredentialError 通道凭证缺失或配置错误
type CredentialError struct {
	Channel string
	Missing []string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: missing credentials: %s", e.Channel, strings.Join(e.Missing, ", "))
}

// DeliveryError 通道拒绝或投递失败
type DeliveryError struct {
	Channel string
	Op      string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Channel, e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
