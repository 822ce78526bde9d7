package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/KNICEX/crypto-alert/internal/entity"
	"github.com/KNICEX/crypto-alert/internal/repo"
	"github.com/KNICEX/crypto-alert/internal/service/threshold"
	"github.com/samber/lo"
)

var (
	_ Ledger    = (*DBLedger)(nil)
	_ Historian = (*DBLedger)(nil)
)

// DBLedger 基于数据库的账本, Clear 只标记已入日报, 保留历史
type DBLedger struct {
	repo repo.AlertRepo
}

func FromRepo(r repo.AlertRepo) *DBLedger {
	return &DBLedger{repo: r}
}

func (l *DBLedger) Append(ctx context.Context, e Event) error {
	_, err := l.repo.Create(ctx, entity.Alert{
		EventId:   e.ID,
		Asset:     e.Asset,
		Direction: string(e.Direction),
		Price:     e.Price,
		Threshold: e.Threshold,
		Message:   e.Message,
		CreatedAt: e.At,
	})
	if err != nil {
		return &WriteError{Path: "alerts", Err: err}
	}
	return nil
}

func (l *DBLedger) DrainForDigest(ctx context.Context) (string, error) {
	alerts, err := l.repo.FindPending(ctx)
	if err != nil {
		return "", err
	}
	if len(alerts) == 0 {
		return "", ErrEmpty
	}
	lines := lo.Map(alerts, func(item entity.Alert, index int) string {
		return fromEntity(item).Line()
	})
	return strings.Join(lines, "\n") + "\n", nil
}

func (l *DBLedger) Clear(ctx context.Context) error {
	_, err := l.repo.MarkDigested(ctx, time.Now())
	return err
}

func (l *DBLedger) Len(ctx context.Context) (int, error) {
	n, err := l.repo.CountPending(ctx)
	return int(n), err
}

// History 最近的告警, 包括已入日报的; asset 为空时不过滤
func (l *DBLedger) History(ctx context.Context, asset string, limit int) ([]Event, error) {
	alerts, err := l.repo.FindByAsset(ctx, asset, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(alerts, func(item entity.Alert, index int) Event {
		return fromEntity(item)
	}), nil
}

func fromEntity(a entity.Alert) Event {
	return Event{
		ID:        a.EventId,
		Asset:     a.Asset,
		Direction: threshold.Direction(a.Direction),
		Price:     a.Price,
		Threshold: a.Threshold,
		Message:   a.Message,
		At:        a.CreatedAt,
	}
}
