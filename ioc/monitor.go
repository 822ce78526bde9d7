package ioc

import (
	"fmt"
	"time"

	"github.com/KNICEX/crypto-alert/internal/config"
	"github.com/KNICEX/crypto-alert/internal/metrics"
	"github.com/KNICEX/crypto-alert/internal/schedule"
	"github.com/KNICEX/crypto-alert/internal/service/monitor"
	"github.com/KNICEX/crypto-alert/internal/service/threshold"
	"github.com/prometheus/client_golang/prometheus"
)

func InitMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.New(reg), reg
}

func InitMonitor(cfg *config.Config, m *metrics.Metrics) (*monitor.Service, error) {
	policy := threshold.NewPolicy(cfg.Targets())
	policy.Validate()

	l, err := InitLedger(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	notifier := InitNotifier(cfg.Notify)

	cycle := monitor.NewCycle(InitPriceSource(cfg), policy, notifier, l,
		monitor.WithMetrics(m),
		monitor.WithFetchTimeout(cfg.Price.Timeout),
	)
	return monitor.NewService(cycle, l, notifier, monitor.WithServiceMetrics(m)), nil
}

func InitScheduler(cfg config.Schedule, svc *monitor.Service, skipNotify bool) (*schedule.Scheduler, error) {
	daily, err := schedule.ParseDailyAt(cfg.DigestAt, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid digest_at: %w", err)
	}

	s := schedule.New()
	var opts []schedule.RegisterOption
	if cfg.RunAtStart {
		opts = append(opts, schedule.RunAtStart())
	}
	s.Register(monitor.NewCheckTask(svc, skipNotify), schedule.Every(cfg.CheckInterval), opts...)
	s.Register(monitor.NewDigestTask(svc), daily)
	return s, nil
}
