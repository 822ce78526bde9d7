package threshold

import (
	"log/slog"

	"github.com/KNICEX/crypto-alert/internal/service/price"
	"github.com/samber/lo"
)

type Direction string

const (
	None  Direction = "none"
	Above Direction = "above"
	Below Direction = "below"
)

// Pair 上下阈值, 期望 Up > Down 但不强制
type Pair struct {
	Up   float64 `mapstructure:"up"`
	Down float64 `mapstructure:"down"`
}

// Breached 返回被突破的阈值
func (p Pair) Breached(d Direction) float64 {
	if d == Below {
		return p.Down
	}
	return p.Up
}

// Classify Above 优先判断并短路, Down >= Up 时两者同时满足也返回 Above
func Classify(r price.Reading, p Pair) Direction {
	if r.Absent() {
		return None
	}
	if r.Price >= p.Up {
		return Above
	}
	if r.Price <= p.Down {
		return Below
	}
	return None
}

type Target struct {
	Asset  string
	Symbol string
	Pair   Pair
}

// Policy 按配置顺序保存每个资产的阈值
type Policy struct {
	targets []Target
}

func NewPolicy(targets []Target) *Policy {
	p := &Policy{targets: make([]Target, len(targets))}
	copy(p.targets, targets)
	return p
}

// Snapshot 一个周期内使用同一份阈值
func (p *Policy) Snapshot() []Target {
	res := make([]Target, len(p.targets))
	copy(res, p.targets)
	return res
}

// Validate 记录 Down >= Up 的异常配置, 不拒绝
func (p *Policy) Validate() []Target {
	inverted := lo.Filter(p.targets, func(item Target, index int) bool {
		return item.Pair.Down >= item.Pair.Up
	})
	for _, t := range inverted {
		slog.Warn("threshold down is not below up, above wins when both match",
			"asset", t.Asset, "up", t.Pair.Up, "down", t.Pair.Down)
	}
	return inverted
}
