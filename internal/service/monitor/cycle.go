package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/KNICEX/crypto-alert/internal/metrics"
	"github.com/KNICEX/crypto-alert/internal/service/ledger"
	"github.com/KNICEX/crypto-alert/internal/service/notification"
	"github.com/KNICEX/crypto-alert/internal/service/price"
	"github.com/KNICEX/crypto-alert/internal/service/threshold"
	"github.com/KNICEX/crypto-alert/pkg/decimalx"
)

// Cycle 一次完整的价格检查: 取价 -> 判断阈值 -> 通知 + 记账
type Cycle struct {
	source   price.Source
	policy   *threshold.Policy
	notifier notification.Notifier
	ledger   ledger.Ledger
	metrics  *metrics.Metrics

	fetchTimeout time.Duration
}

type Option func(c *Cycle)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cycle) {
		c.metrics = m
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cycle) {
		c.fetchTimeout = d
	}
}

func NewCycle(source price.Source, policy *threshold.Policy, notifier notification.Notifier,
	l ledger.Ledger, opts ...Option) *Cycle {
	c := &Cycle{
		source:       source,
		policy:       policy,
		notifier:     notifier,
		ledger:       l,
		fetchTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run 按配置顺序检查所有资产, 单个资产的任何失败只会变成一行摘要
func (c *Cycle) Run(ctx context.Context, skipNotify bool) Summary {
	start := time.Now()
	defer c.metrics.ObserveCycle(start)

	targets := c.policy.Snapshot()
	slog.Info("checking crypto prices", "source", c.source.Name(), "assets", len(targets), "skip_notify", skipNotify)

	summary := make(Summary, 0, len(targets)*2)
	for _, target := range targets {
		summary = append(summary, c.check(ctx, target, skipNotify)...)
	}
	return summary
}

func (c *Cycle) check(ctx context.Context, target threshold.Target, skipNotify bool) []string {
	name := displayName(target.Asset)

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	reading := c.source.Fetch(fetchCtx, target.Asset)
	cancel()
	if !reading.Absent() && (math.IsInf(reading.Price, 0) || math.IsNaN(reading.Price)) {
		reading = price.Absent(target.Asset, price.ReasonDecode, fmt.Errorf("non-finite price %v", reading.Price))
	}

	if reading.Absent() {
		slog.Error("failed to fetch price", "asset", target.Asset, "error", reading.Err)
		c.metrics.ObserveFetch(target.Asset, fetchResult(reading.Err), 0)
		return []string{fmt.Sprintf("⚠️ Unable to fetch %s price", name)}
	}
	c.metrics.ObserveFetch(target.Asset, "ok", reading.Price)
	slog.Info("price fetched", "asset", target.Asset, "price", reading.Price)

	lines := []string{fmt.Sprintf("💰 %s price: $%s", name, decimalx.FormatFloat(reading.Price))}

	direction := threshold.Classify(reading, target.Pair)
	if direction == threshold.None {
		return lines
	}

	limit := target.Pair.Breached(direction)
	subject, body := alertMessage(name, direction, reading.Price, limit)
	c.metrics.ObserveAlert(target.Asset, string(direction))

	if skipNotify {
		c.metrics.ObserveNotify("skipped")
	} else if err := c.notifier.Notify(ctx, subject, body); err != nil {
		slog.Error("failed to send alert", "asset", target.Asset, "direction", direction, "error", err)
		c.metrics.ObserveNotify(notifyResult(err))
		lines = append(lines, fmt.Sprintf("❌ Notification for %s failed: %v", name, err))
	} else if notification.IsSuppressed(c.notifier) {
		c.metrics.ObserveNotify("suppressed")
	} else {
		c.metrics.ObserveNotify("sent")
	}

	// 无论通知是否成功都记账, 日报依赖账本
	if err := c.ledger.Append(ctx, ledger.NewEvent(target.Asset, direction, reading.Price, limit, body)); err != nil {
		slog.Error("failed to record alert", "asset", target.Asset, "direction", direction, "error", err)
		c.metrics.ObserveLedgerWriteError()
	}

	return append(lines, directionLine(name, direction, limit))
}

func alertMessage(name string, direction threshold.Direction, p, limit float64) (subject, body string) {
	current, target := decimalx.FormatFloat(p), decimalx.FormatFloat(limit)
	if direction == threshold.Above {
		return fmt.Sprintf("🚀 %s Price Alert!", name),
			fmt.Sprintf("%s has reached $%s (above your target of $%s)!", name, current, target)
	}
	return fmt.Sprintf("📉 %s Price Drop Alert!", name),
		fmt.Sprintf("%s dropped to $%s (below your target of $%s)!", name, current, target)
}

func directionLine(name string, direction threshold.Direction, limit float64) string {
	if direction == threshold.Above {
		return fmt.Sprintf("🚀 %s is above your target ($%s)!", name, decimalx.FormatFloat(limit))
	}
	return fmt.Sprintf("📉 %s is below your target ($%s)!", name, decimalx.FormatFloat(limit))
}

func fetchResult(err error) string {
	var fe *price.FetchError
	if errors.As(err, &fe) {
		return string(fe.Reason)
	}
	return "error"
}

func notifyResult(err error) string {
	var ce *notification.CredentialError
	var de *notification.DeliveryError
	switch {
	case errors.As(err, &ce):
		return "credential_error"
	case errors.As(err, &de):
		return "delivery_error"
	default:
		return "error"
	}
}
