package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/KNICEX/crypto-alert/internal/service/price"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

var _ price.Source = (*Source)(nil)

type Source struct {
	baseURL    string
	vsCurrency string
	timeout    time.Duration
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

type Option func(s *Source)

func WithBaseURL(u string) Option {
	return func(s *Source) {
		s.baseURL = u
	}
}

func WithVsCurrency(vs string) Option {
	return func(s *Source) {
		s.vsCurrency = vs
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		s.timeout = d
		s.client.Timeout = d
	}
}

// WithRateLimit 每分钟最多请求次数, <= 0 不限流
func WithRateLimit(perMinute int) Option {
	return func(s *Source) {
		if perMinute <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// WithBreaker 连续失败 failures 次后熔断 cooldown
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(s *Source) {
		if failures == 0 {
			failures = 5
		}
		s.breaker = newBreaker(failures, cooldown)
	}
}

func NewSource(opts ...Option) *Source {
	s := &Source{
		baseURL:    DefaultBaseURL,
		vsCurrency: "usd",
		timeout:    10 * time.Second,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		breaker: newBreaker(5, time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newBreaker(failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "coingecko",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 资产不存在是配置问题, 不算上游故障
		IsSuccessful: func(err error) bool {
			var fe *price.FetchError
			if errors.As(err, &fe) {
				return fe.Reason == price.ReasonMissingKey
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("price source breaker state changed", "source", name, "from", from.String(), "to", to.String())
		},
	})
}

func (s *Source) Name() string {
	return "coingecko"
}

func (s *Source) Fetch(ctx context.Context, asset string) price.Reading {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return price.Absent(asset, price.ReasonThrottled, err)
		}
	}

	res, err := s.breaker.Execute(func() (any, error) {
		return s.fetch(ctx, asset)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return price.Absent(asset, price.ReasonCircuitOpen, err)
		}
		var fe *price.FetchError
		if errors.As(err, &fe) {
			return price.Reading{Asset: asset, Err: fe, At: time.Now()}
		}
		return price.Absent(asset, price.ReasonTransport, err)
	}
	return price.Present(asset, res.(float64))
}

func (s *Source) fetch(ctx context.Context, asset string) (float64, error) {
	params := url.Values{}
	params.Set("ids", asset)
	params.Set("vs_currencies", s.vsCurrency)
	fullURL := fmt.Sprintf("%s/simple/price?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, fetchErr(asset, price.ReasonTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fetchErr(asset, price.ReasonTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fetchErr(asset, price.ReasonTransport, err)
	}
	slog.Debug("coingecko response", "asset", asset, "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, fetchErr(asset, price.ReasonRateLimited, fmt.Errorf("http %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fetchErr(asset, price.ReasonStatus, fmt.Errorf("http %d", resp.StatusCode))
	}

	var payload map[string]json.RawMessage
	if err = json.Unmarshal(body, &payload); err != nil {
		return 0, fetchErr(asset, price.ReasonDecode, err)
	}

	raw, ok := payload[asset]
	if !ok {
		return 0, s.classifyMissing(asset, payload)
	}

	// decimal 把 null 解析成 0, 用指针区分
	var quotes map[string]*decimal.Decimal
	if err = json.Unmarshal(raw, &quotes); err != nil {
		return 0, fetchErr(asset, price.ReasonDecode, err)
	}
	quote, ok := quotes[s.vsCurrency]
	if !ok {
		return 0, fetchErr(asset, price.ReasonMissingKey, fmt.Errorf("no %s quote", s.vsCurrency))
	}
	if quote == nil {
		return 0, fetchErr(asset, price.ReasonDecode, fmt.Errorf("null %s quote", s.vsCurrency))
	}
	f := quote.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fetchErr(asset, price.ReasonDecode, fmt.Errorf("%s quote out of range: %s", s.vsCurrency, quote.String()))
	}
	return f, nil
}

// classifyMissing 区分限流/错误形态的响应与单纯缺少资产
func (s *Source) classifyMissing(asset string, payload map[string]json.RawMessage) error {
	if raw, ok := payload["status"]; ok {
		var status struct {
			ErrorCode    int    `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		}
		if err := json.Unmarshal(raw, &status); err == nil && status.ErrorCode != 0 {
			if status.ErrorCode == http.StatusTooManyRequests {
				return fetchErr(asset, price.ReasonRateLimited, errors.New(status.ErrorMessage))
			}
			return fetchErr(asset, price.ReasonProviderError,
				fmt.Errorf("code %d: %s", status.ErrorCode, status.ErrorMessage))
		}
	}
	if raw, ok := payload["error"]; ok {
		return fetchErr(asset, price.ReasonProviderError, errors.New(string(raw)))
	}
	return fetchErr(asset, price.ReasonMissingKey, errors.New("asset not in response"))
}

func fetchErr(asset string, reason price.Reason, err error) *price.FetchError {
	return &price.FetchError{Asset: asset, Reason: reason, Err: err}
}
