package price

import (
	"context"
	"fmt"
	"time"
)

// Reason 取价失败原因
type Reason string

const (
	ReasonTransport     Reason = "transport"
	ReasonStatus        Reason = "status"
	ReasonRateLimited   Reason = "rate_limited"
	ReasonDecode        Reason = "decode"
	ReasonProviderError Reason = "provider_error"
	ReasonMissingKey    Reason = "missing_key"
	ReasonThrottled     Reason = "throttled"
	ReasonCircuitOpen   Reason = "circuit_open"
)

// FetchError 取价失败, 由 Source 内部生成, 不会向上抛出
type FetchError struct {
	Asset  string
	Reason Reason
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.Asset, e.Reason)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Asset, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Reading 一次取价结果, Err 不为空时视为缺失
type Reading struct {
	Asset string
	Price float64
	Err   error
	At    time.Time
}

func (r Reading) Absent() bool {
	return r.Err != nil
}

func Present(asset string, price float64) Reading {
	return Reading{Asset: asset, Price: price, At: time.Now()}
}

func Absent(asset string, reason Reason, err error) Reading {
	return Reading{
		Asset: asset,
		Err:   &FetchError{Asset: asset, Reason: reason, Err: err},
		At:    time.Now(),
	}
}

// Source 报价源, Fetch 永远不返回 error, 失败体现在 Reading.Err
type Source interface {
	Fetch(ctx context.Context, asset string) Reading
	Name() string
}
