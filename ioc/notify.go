package ioc

import (
	"net/http"

	"github.com/KNICEX/crypto-alert/internal/config"
	"github.com/KNICEX/crypto-alert/internal/service/notification"
	"github.com/KNICEX/crypto-alert/internal/service/notification/email"
	"github.com/KNICEX/crypto-alert/internal/service/notification/webhook"
)

func InitNotifier(cfg config.Notify) notification.Notifier {
	var n notification.Notifier
	switch cfg.Channel {
	case "webhook":
		n = notification.NewWebhookNotifier(webhook.NewService(&http.Client{Timeout: cfg.Webhook.Timeout}), cfg.Webhook.URL)
	case "console":
		n = notification.ConsoleNotifier{}
	default:
		svc := email.NewService(email.Config{
			Host:        cfg.Email.Host,
			Port:        cfg.Email.Port,
			Username:    cfg.Email.Username,
			Password:    cfg.Email.Password,
			From:        cfg.Email.Username,
			ImplicitTLS: cfg.Email.ImplicitTLS,
		})
		n = notification.NewEmailNotifier(svc, cfg.Email.To)
	}
	if cfg.Suppress {
		return notification.Suppress(n)
	}
	return n
}
