package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/KNICEX/crypto-alert/internal/metrics"
	"github.com/KNICEX/crypto-alert/internal/service/llm"
	"github.com/KNICEX/crypto-alert/internal/service/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMonitor struct {
	mock.Mock
}

func (m *MockMonitor) Check(ctx context.Context, skipNotify bool) monitor.Summary {
	args := m.Called(ctx, skipNotify)
	return args.Get(0).(monitor.Summary)
}

func (m *MockMonitor) Pending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) AskOnce(ctx context.Context, q llm.Question) (llm.Answer, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(llm.Answer), args.Error(1)
}

func (m *MockLLM) BeginChat(ctx context.Context) (llm.Session, error) {
	args := m.Called(ctx)
	return nil, args.Error(0)
}

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Index(t *testing.T) {
	s := NewServer(new(MockMonitor), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="check_prices"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_CheckPrices(t *testing.T) {
	testCases := []struct {
		name       string
		suppressed bool
	}{
		{name: "notify", suppressed: false},
		{name: "suppressed skips notify", suppressed: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mon := new(MockMonitor)
			mon.On("Check", mock.Anything, tc.suppressed).
				Return(monitor.Summary{"💰 Bitcoin price: $82,000", "🚀 Bitcoin is above your target ($80,000)!"}).Once()
			chat := new(MockLLM)

			s := NewServer(mon, chat, WithSuppressed(tc.suppressed))
			rec := postForm(t, s.Handler(), url.Values{"check_prices": {"1"}})

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "Bitcoin is above your target ($80,000)!")
			mon.AssertExpectations(t)
			chat.AssertNotCalled(t, "AskOnce", mock.Anything, mock.Anything)
		})
	}
}

func TestServer_Chat(t *testing.T) {
	testCases := []struct {
		name   string
		answer llm.Answer
		err    error
		want   string
	}{
		{
			name:   "reply",
			answer: llm.Answer{Content: "Bitcoin is a cryptocurrency."},
			want:   "Bitcoin is a cryptocurrency.",
		},
		{
			name: "missing key",
			err:  llm.ErrMissingKey,
			want: "API key is missing on server",
		},
		{
			name: "upstream error",
			err:  errors.New("status 500"),
			want: "Error from LLM: status 500",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chat := new(MockLLM)
			chat.On("AskOnce", mock.Anything, llm.Question{Content: "what is bitcoin"}).Return(tc.answer, tc.err)
			mon := new(MockMonitor)

			s := NewServer(mon, chat)
			rec := postForm(t, s.Handler(), url.Values{"message": {"what is bitcoin"}})

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			mon.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
		})
	}
}

func TestServer_ChatUnconfigured(t *testing.T) {
	s := NewServer(new(MockMonitor), nil)
	rec := postForm(t, s.Handler(), url.Values{"message": {"hello"}})
	assert.Contains(t, rec.Body.String(), "API key is missing on server")
}

func TestServer_Health(t *testing.T) {
	testCases := []struct {
		name       string
		pending    int
		err        error
		wantStatus int
		wantState  string
	}{
		{name: "ok", pending: 3, wantStatus: http.StatusOK, wantState: "ok"},
		{name: "ledger unreadable", err: errors.New("permission denied"),
			wantStatus: http.StatusServiceUnavailable, wantState: "degraded"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mon := new(MockMonitor)
			mon.On("Pending", mock.Anything).Return(tc.pending, tc.err)

			s := NewServer(mon, nil)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.wantStatus, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.wantState, body["status"])
			if tc.err == nil {
				assert.Equal(t, float64(tc.pending), body["pending_alerts"])
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveAlert("bitcoin", "above")

	s := NewServer(new(MockMonitor), nil, WithGatherer(reg))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `crypto_alert_alerts_total{asset="bitcoin",direction="above"} 1`)
}
