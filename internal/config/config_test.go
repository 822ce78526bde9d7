package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KNICEX/crypto-alert/internal/service/threshold"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
assets:
  - id: bitcoin
    symbol: BTC
    up: 80000
    down: 60000
  - id: avalanche-2
    symbol: AVAX
    up: 60
    down: 20
price:
  provider: binance
  timeout: 5s
notify:
  channel: webhook
  webhook:
    url: http://hooks.local/alert
schedule:
  check_interval: 30m
  digest_at: "07:30"
`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// 防止宿主机环境变量干扰
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"ALERT_EMAIL", "EMAIL_USER", "ALERT_EMAIL_PASSWORD", "EMAIL_PASS", "GROQ_API_KEY",
		"GEMINI_API_KEY", "RENDER", "BITCOIN_TARGET_UP", "BITCOIN_TARGET_DOWN",
		"SOLANA_TARGET_UP", "SOLANA_TARGET_DOWN", "ALGORAND_TARGET_UP", "ALGORAND_TARGET_DOWN",
		"CRYPTO_ALERT_NOTIFY_SUPPRESS", "CRYPTO_ALERT_NOTIFY_EMAIL_USERNAME",
		"CRYPTO_ALERT_LLM_PROVIDER", "CRYPTO_ALERT_LLM_API_KEY",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(viper.New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, []threshold.Target{
		{Asset: "bitcoin", Symbol: "BTC", Pair: threshold.Pair{Up: 100000, Down: 60000}},
		{Asset: "solana", Symbol: "SOL", Pair: threshold.Pair{Up: 300, Down: 100}},
		{Asset: "algorand", Symbol: "ALGO", Pair: threshold.Pair{Up: 0.5, Down: 0.1}},
	}, cfg.Targets())
	assert.Equal(t, "coingecko", cfg.Price.Provider)
	assert.Equal(t, 10*time.Second, cfg.Price.Timeout)
	assert.Equal(t, "smtp.gmail.com", cfg.Notify.Email.Host)
	assert.Equal(t, 465, cfg.Notify.Email.Port)
	assert.False(t, cfg.Notify.Suppress)
	assert.Equal(t, "daily_summary.txt", cfg.Ledger.Path)
	assert.Equal(t, time.Hour, cfg.Schedule.CheckInterval)
	assert.Equal(t, "18:00", cfg.Schedule.DigestAt)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "You are a helpful AI assistant.", cfg.LLM.SystemPrompt)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(viper.New(), writeFile(t, "config.yaml", sampleYAML), "")
	require.NoError(t, err)

	require.Len(t, cfg.Assets, 2)
	assert.Equal(t, Asset{ID: "avalanche-2", Symbol: "AVAX", Up: 60, Down: 20}, cfg.Assets[1])
	assert.Equal(t, map[string]string{"bitcoin": "BTC", "avalanche-2": "AVAX"}, cfg.Symbols())
	assert.Equal(t, "binance", cfg.Price.Provider)
	assert.Equal(t, 5*time.Second, cfg.Price.Timeout)
	assert.Equal(t, "webhook", cfg.Notify.Channel)
	assert.Equal(t, "http://hooks.local/alert", cfg.Notify.Webhook.URL)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.CheckInterval)
	assert.Equal(t, "07:30", cfg.Schedule.DigestAt)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BITCOIN_TARGET_UP", "82000")
	t.Setenv("AVALANCHE_2_TARGET_DOWN", "15.5")
	t.Setenv("ALERT_EMAIL", "me@example.com")
	t.Setenv("EMAIL_PASS", "app-password")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("RENDER", "true")

	cfg, err := Load(viper.New(), writeFile(t, "config.yaml", sampleYAML), "")
	require.NoError(t, err)

	assert.Equal(t, 82000.0, cfg.Assets[0].Up)
	assert.Equal(t, 60000.0, cfg.Assets[0].Down)
	assert.Equal(t, 15.5, cfg.Assets[1].Down)
	assert.Equal(t, "me@example.com", cfg.Notify.Email.Username)
	assert.Equal(t, "me@example.com", cfg.Notify.Email.To)
	assert.Equal(t, "app-password", cfg.Notify.Email.Password)
	assert.Equal(t, "gsk_test", cfg.LLM.ApiKey)
	assert.True(t, cfg.Notify.Suppress)
}

func TestLoad_LLMKeyFollowsProvider(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantKey string
	}{
		{
			name:    "groq ignores gemini key",
			env:     map[string]string{"GEMINI_API_KEY": "gemini-key"},
			wantKey: "",
		},
		{
			name:    "groq key",
			env:     map[string]string{"GROQ_API_KEY": "gsk_test", "GEMINI_API_KEY": "gemini-key"},
			wantKey: "gsk_test",
		},
		{
			name:    "gemini key",
			yaml:    "llm:\n  provider: gemini\n",
			env:     map[string]string{"GROQ_API_KEY": "gsk_test", "GEMINI_API_KEY": "gemini-key"},
			wantKey: "gemini-key",
		},
		{
			name:    "provider from env",
			env:     map[string]string{"CRYPTO_ALERT_LLM_PROVIDER": "gemini", "GEMINI_API_KEY": "gemini-key"},
			wantKey: "gemini-key",
		},
		{
			name:    "explicit key wins",
			env:     map[string]string{"CRYPTO_ALERT_LLM_API_KEY": "explicit", "GROQ_API_KEY": "gsk_test"},
			wantKey: "explicit",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			file := ""
			if tc.yaml != "" {
				file = writeFile(t, "config.yaml", tc.yaml)
			}
			cfg, err := Load(viper.New(), file, "")
			require.NoError(t, err)
			assert.Equal(t, tc.wantKey, cfg.LLM.ApiKey)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Cleanup(func() {
		_ = os.Unsetenv("SOLANA_TARGET_DOWN")
		_ = os.Unsetenv("EMAIL_USER")
	})

	envFile := writeFile(t, ".env", "SOLANA_TARGET_DOWN=90\nEMAIL_USER=alerts@example.com\n")
	cfg, err := Load(viper.New(), "", envFile)
	require.NoError(t, err)

	assert.Equal(t, 90.0, cfg.Assets[1].Down)
	assert.Equal(t, "alerts@example.com", cfg.Notify.Email.Username)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		env     map[string]string
		envFile string
	}{
		{
			name: "invalid target env",
			env:  map[string]string{"BITCOIN_TARGET_UP": "lots"},
		},
		{
			name: "invalid digest time",
			yaml: "schedule:\n  digest_at: \"6pm\"\n",
		},
		{
			name: "unknown provider",
			yaml: "price:\n  provider: kraken\n",
		},
		{
			name: "duplicate assets",
			yaml: "assets:\n  - id: bitcoin\n  - id: bitcoin\n",
		},
		{
			name: "zero price timeout",
			yaml: "price:\n  timeout: 0s\n",
		},
		{
			name: "negative price timeout",
			yaml: "price:\n  timeout: -5s\n",
		},
		{
			name:    "missing env file",
			envFile: "/nonexistent/.env",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			file := ""
			if tc.yaml != "" {
				file = writeFile(t, "config.yaml", tc.yaml)
			}
			_, err := Load(viper.New(), file, tc.envFile)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(viper.New(), "/nonexistent/config.yaml", "")
	assert.ErrorContains(t, err, "read config")
}
