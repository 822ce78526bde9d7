package monitor

import (
	"context"
	"log/slog"

	"github.com/KNICEX/crypto-alert/internal/schedule"
)

type CheckTask struct {
	svc        *Service
	skipNotify bool
}

func NewCheckTask(svc *Service, skipNotify bool) schedule.Task {
	return &CheckTask{
		svc:        svc,
		skipNotify: skipNotify,
	}
}

func (t *CheckTask) Run(ctx context.Context) error {
	summary := t.svc.Check(ctx, t.skipNotify)
	slog.Info("price check finished", "summary", summary.String())
	return nil
}

func (t *CheckTask) Name() string {
	return "price check"
}

type DigestTask struct {
	svc *Service
}

func NewDigestTask(svc *Service) schedule.Task {
	return &DigestTask{svc: svc}
}

func (t *DigestTask) Run(ctx context.Context) error {
	_, err := t.svc.Digest(ctx)
	return err
}

func (t *DigestTask) Name() string {
	return "daily digest"
}
