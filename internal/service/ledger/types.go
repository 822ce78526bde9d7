package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KNICEX/crypto-alert/internal/service/threshold"
	"github.com/google/uuid"
)

const timeLayout = "2006-01-02 15:04:05"

// ErrEmpty 账本为空, 无需发送日报
var ErrEmpty = errors.New("ledger: empty")

// WriteError 追加写失败, 调用方只记录日志
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ledger: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Event 一次告警, 创建后不可变
type Event struct {
	ID        string              `json:"id"`
	Asset     string              `json:"asset"`
	Direction threshold.Direction `json:"direction"`
	Price     float64             `json:"price"`
	Threshold float64             `json:"threshold"`
	Message   string              `json:"message"`
	At        time.Time           `json:"at"`
}

func NewEvent(asset string, direction threshold.Direction, price, limit float64, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Asset:     asset,
		Direction: direction,
		Price:     price,
		Threshold: limit,
		Message:   message,
		At:        time.Now(),
	}
}

// Line 账本中的一行, 如 "[2025-01-02 15:04:05] bitcoin above: ..."
func (e Event) Line() string {
	return fmt.Sprintf("[%s] %s %s: %s", e.At.Format(timeLayout), e.Asset, e.Direction, e.Message)
}

// Ledger 追加式告警账本.
// DrainForDigest 与 Clear 非原子, 两者之间崩溃会导致下一次日报重复.
type Ledger interface {
	Append(ctx context.Context, e Event) error
	DrainForDigest(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Historian 保留已入日报告警的后端实现, 用于查询历史
type Historian interface {
	History(ctx context.Context, asset string, limit int) ([]Event, error)
}
