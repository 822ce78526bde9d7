package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KNICEX/crypto-alert/internal/metrics"
	"github.com/KNICEX/crypto-alert/internal/service/ledger"
	"github.com/KNICEX/crypto-alert/internal/service/notification"
)

// Service 串行化价格检查与日报, 同一时刻只有一个在运行.
// 账本不支持并发写, 定时任务和网页触发的检查都经过这里.
type Service struct {
	cycle    *Cycle
	ledger   ledger.Ledger
	notifier notification.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time

	mu sync.Mutex
}

type ServiceOption func(s *Service)

func WithServiceMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(cycle *Cycle, l ledger.Ledger, notifier notification.Notifier, opts ...ServiceOption) *Service {
	s := &Service{
		cycle:    cycle,
		ledger:   l,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Check(ctx context.Context, skipNotify bool) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle.Run(ctx, skipNotify)
}

// Digest 发送账本汇总, 发送成功后才清空账本.
// 静默模式的空操作同样视为成功, 账本照常清空.
func (s *Service) Digest(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, err := s.ledger.DrainForDigest(ctx)
	if errors.Is(err, ledger.ErrEmpty) {
		slog.Info("no alerts today, skipping summary")
		s.metrics.ObserveDigest("empty")
		return false, nil
	}
	if err != nil {
		s.metrics.ObserveDigest("failed")
		return false, fmt.Errorf("drain ledger: %w", err)
	}

	subject := fmt.Sprintf("📊 Daily Crypto Alert Summary — %s", s.now().Format("January 02, 2006"))
	body := fmt.Sprintf("Here's your summary of today's crypto alerts:\n\n%s", text)

	if err = s.notifier.Notify(ctx, subject, body); err != nil {
		s.metrics.ObserveDigest("failed")
		return false, fmt.Errorf("send digest: %w", err)
	}
	if err = s.ledger.Clear(ctx); err != nil {
		s.metrics.ObserveDigest("failed")
		return true, fmt.Errorf("clear ledger after digest: %w", err)
	}
	if notification.IsSuppressed(s.notifier) {
		slog.Info("digest suppressed, ledger cleared")
		s.metrics.ObserveDigest("suppressed")
		return true, nil
	}
	slog.Info("daily summary sent")
	s.metrics.ObserveDigest("sent")
	return true, nil
}

// Pending 尚未进入日报的告警数
func (s *Service) Pending(ctx context.Context) (int, error) {
	return s.ledger.Len(ctx)
}

// ErrNoHistory 当前账本后端不保留已入日报的告警
var ErrNoHistory = errors.New("ledger backend does not keep history")

// History 最近的告警, 仅 sqlite 后端支持
func (s *Service) History(ctx context.Context, asset string, limit int) ([]ledger.Event, error) {
	h, ok := s.ledger.(ledger.Historian)
	if !ok {
		return nil, ErrNoHistory
	}
	return h.History(ctx, asset, limit)
}

// TestNotify 发送一条测试消息, 用于验证通道配置
func (s *Service) TestNotify(ctx context.Context) error {
	return s.notifier.Notify(ctx, "Test Email: Crypto Alert",
		"✅ This is a test email from your Crypto Alert system.")
}
