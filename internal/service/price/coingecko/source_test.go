package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KNICEX/crypto-alert/internal/service/price"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, handler http.HandlerFunc, opts ...Option) *Source {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithRateLimit(0)}, opts...)
	return NewSource(opts...)
}

func reasonOf(t *testing.T, r price.Reading) price.Reason {
	require.True(t, r.Absent(), "expected absent reading")
	var fe *price.FetchError
	require.True(t, errors.As(r.Err, &fe))
	return fe.Reason
}

func TestSource_Fetch(t *testing.T) {
	testCases := []struct {
		name       string
		asset      string
		status     int
		body       string
		wantPrice  float64
		wantReason price.Reason
	}{
		{
			name:      "ok",
			asset:     "bitcoin",
			status:    http.StatusOK,
			body:      `{"bitcoin":{"usd":82000}}`,
			wantPrice: 82000,
		},
		{
			name:      "fractional",
			asset:     "algorand",
			status:    http.StatusOK,
			body:      `{"algorand":{"usd":0.1834}}`,
			wantPrice: 0.1834,
		},
		{
			name:       "server error",
			asset:      "bitcoin",
			status:     http.StatusInternalServerError,
			body:       `oops`,
			wantReason: price.ReasonStatus,
		},
		{
			name:       "http 429",
			asset:      "bitcoin",
			status:     http.StatusTooManyRequests,
			body:       `{}`,
			wantReason: price.ReasonRateLimited,
		},
		{
			name:       "rate limit payload",
			asset:      "bitcoin",
			status:     http.StatusOK,
			body:       `{"status":{"error_code":429,"error_message":"You've exceeded the Rate Limit."}}`,
			wantReason: price.ReasonRateLimited,
		},
		{
			name:       "error payload",
			asset:      "bitcoin",
			status:     http.StatusOK,
			body:       `{"error":"invalid vs_currency"}`,
			wantReason: price.ReasonProviderError,
		},
		{
			name:       "malformed json",
			asset:      "bitcoin",
			status:     http.StatusOK,
			body:       `{"bitcoin":`,
			wantReason: price.ReasonDecode,
		},
		{
			name:       "missing asset",
			asset:      "notacoin",
			status:     http.StatusOK,
			body:       `{}`,
			wantReason: price.ReasonMissingKey,
		},
		{
			name:       "missing currency",
			asset:      "bitcoin",
			status:     http.StatusOK,
			body:       `{"bitcoin":{"eur":70000}}`,
			wantReason: price.ReasonMissingKey,
		},
		{
			name:       "null quote",
			asset:      "bitcoin",
			status:     http.StatusOK,
			body:       `{"bitcoin":{"usd":null}}`,
			wantReason: price.ReasonDecode,
		},
		{
			name:       "quote overflows float64",
			asset:      "bitcoin",
			status:     http.StatusOK,
			body:       `{"bitcoin":{"usd":1e400}}`,
			wantReason: price.ReasonDecode,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/simple/price", r.URL.Path)
				assert.Equal(t, tc.asset, r.URL.Query().Get("ids"))
				assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			reading := src.Fetch(context.Background(), tc.asset)
			assert.Equal(t, tc.asset, reading.Asset)
			if tc.wantReason != "" {
				assert.Equal(t, tc.wantReason, reasonOf(t, reading))
				return
			}
			require.False(t, reading.Absent(), "unexpected error: %v", reading.Err)
			assert.InDelta(t, tc.wantPrice, reading.Price, 1e-9)
		})
	}
}

func TestSource_Fetch_Timeout(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	reading := src.Fetch(context.Background(), "bitcoin")
	assert.Equal(t, price.ReasonTransport, reasonOf(t, reading))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSource_Fetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	src := NewSource(WithBaseURL(srv.URL), WithRateLimit(0))

	reading := src.Fetch(context.Background(), "bitcoin")
	assert.Equal(t, price.ReasonTransport, reasonOf(t, reading))
}

func TestSource_Fetch_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithBreaker(2, time.Minute))

	assert.Equal(t, price.ReasonStatus, reasonOf(t, src.Fetch(context.Background(), "bitcoin")))
	assert.Equal(t, price.ReasonStatus, reasonOf(t, src.Fetch(context.Background(), "bitcoin")))
	assert.Equal(t, price.ReasonCircuitOpen, reasonOf(t, src.Fetch(context.Background(), "bitcoin")))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSource_Fetch_MissingKeyKeepsBreakerClosed(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, WithBreaker(1, time.Minute))

	for i := 0; i < 3; i++ {
		assert.Equal(t, price.ReasonMissingKey, reasonOf(t, src.Fetch(context.Background(), "notacoin")))
	}
}

func TestSource_Fetch_Throttled(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":1}}`))
	}, WithRateLimit(1))

	require.False(t, src.Fetch(context.Background(), "bitcoin").Absent())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, price.ReasonThrottled, reasonOf(t, src.Fetch(ctx, "bitcoin")))
}
