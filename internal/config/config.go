package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KNICEX/crypto-alert/internal/schedule"
	"github.com/KNICEX/crypto-alert/internal/service/threshold"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

type Asset struct {
	ID     string  `mapstructure:"id"`
	Symbol string  `mapstructure:"symbol"`
	Up     float64 `mapstructure:"up"`
	Down   float64 `mapstructure:"down"`
}

type Price struct {
	Provider        string        `mapstructure:"provider"`
	BaseURL         string        `mapstructure:"base_url"`
	VsCurrency      string        `mapstructure:"vs_currency"`
	Quote           string        `mapstructure:"quote"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RatePerMinute   int           `mapstructure:"rate_per_minute"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

type Binance struct {
	ApiKey    string `mapstructure:"api_key"`
	ApiSecret string `mapstructure:"api_secret"`
	// 为空时使用 go-binance 默认地址
	BaseURL string `mapstructure:"base_url"`
	Testnet bool   `mapstructure:"testnet"`
}

type Email struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	To          string `mapstructure:"to"`
	ImplicitTLS bool   `mapstructure:"implicit_tls"`
}

type Webhook struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Notify struct {
	Suppress bool    `mapstructure:"suppress"`
	Channel  string  `mapstructure:"channel"`
	Email    Email   `mapstructure:"email"`
	Webhook  Webhook `mapstructure:"webhook"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// Ledger driver: file | sqlite | buntdb | redis
type Ledger struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
	Redis  Redis  `mapstructure:"redis"`
}

type Schedule struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	DigestAt      string        `mapstructure:"digest_at"`
	RunAtStart    bool          `mapstructure:"run_at_start"`
}

type LLM struct {
	Provider     string        `mapstructure:"provider"`
	ApiKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type Web struct {
	Addr string `mapstructure:"addr"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type Config struct {
	Assets   []Asset  `mapstructure:"assets"`
	Price    Price    `mapstructure:"price"`
	Binance  Binance  `mapstructure:"binance"`
	Notify   Notify   `mapstructure:"notify"`
	Ledger   Ledger   `mapstructure:"ledger"`
	Schedule Schedule `mapstructure:"schedule"`
	LLM      LLM      `mapstructure:"llm"`
	Web      Web      `mapstructure:"web"`
	Log      Log      `mapstructure:"log"`
}

// Load 读取 .env -> 配置文件 -> 环境变量, 后者覆盖前者.
// file 为空时只使用默认值和环境变量.
func Load(v *viper.Viper, file, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	setDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	v.SetEnvPrefix("CRYPTO_ALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if strings.EqualFold(v.GetString("render"), "true") {
		cfg.Notify.Suppress = true
	}
	if cfg.Notify.Email.To == "" {
		cfg.Notify.Email.To = cfg.Notify.Email.Username
	}
	if err := applyTargetEnv(cfg.Assets); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	err := godotenv.Load(envFile)
	if err == nil {
		slog.Debug("env file loaded", "file", envFile)
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", envFile, err)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("assets", []map[string]any{
		{"id": "bitcoin", "symbol": "BTC", "up": 100000, "down": 60000},
		{"id": "solana", "symbol": "SOL", "up": 300, "down": 100},
		{"id": "algorand", "symbol": "ALGO", "up": 0.5, "down": 0.1},
	})

	v.SetDefault("price.provider", "coingecko")
	v.SetDefault("price.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("price.vs_currency", "usd")
	v.SetDefault("price.quote", "USDT")
	v.SetDefault("price.timeout", 10*time.Second)
	v.SetDefault("price.rate_per_minute", 30)
	v.SetDefault("price.breaker_failures", 5)
	v.SetDefault("price.breaker_cooldown", time.Minute)

	v.SetDefault("notify.suppress", false)
	v.SetDefault("notify.channel", "email")
	v.SetDefault("notify.email.host", "smtp.gmail.com")
	v.SetDefault("notify.email.port", 465)
	v.SetDefault("notify.email.implicit_tls", true)
	v.SetDefault("notify.email.to", "")
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.timeout", 10*time.Second)

	v.SetDefault("ledger.driver", "file")
	v.SetDefault("ledger.path", "daily_summary.txt")
	v.SetDefault("ledger.dsn", "crypto_alert.db")
	v.SetDefault("ledger.redis.addr", "localhost:6379")
	v.SetDefault("ledger.redis.password", "")
	v.SetDefault("ledger.redis.db", 0)
	v.SetDefault("ledger.redis.key", "crypto_alert:ledger")

	v.SetDefault("schedule.check_interval", time.Hour)
	v.SetDefault("schedule.digest_at", "18:00")
	v.SetDefault("schedule.run_at_start", true)

	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.system_prompt", "You are a helpful AI assistant.")
	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("web.addr", ":5000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
}

// bindLegacyEnv 兼容旧部署使用的环境变量名
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("notify.email.username", "CRYPTO_ALERT_NOTIFY_EMAIL_USERNAME", "ALERT_EMAIL", "EMAIL_USER")
	_ = v.BindEnv("notify.email.password", "CRYPTO_ALERT_NOTIFY_EMAIL_PASSWORD", "ALERT_EMAIL_PASSWORD", "EMAIL_PASS")
	// 旧的 key 只绑定到对应的 provider, 避免把 gemini key 发给 groq
	llmEnv := []string{"CRYPTO_ALERT_LLM_API_KEY"}
	switch v.GetString("llm.provider") {
	case "groq":
		llmEnv = append(llmEnv, "GROQ_API_KEY")
	case "gemini":
		llmEnv = append(llmEnv, "GEMINI_API_KEY")
	}
	_ = v.BindEnv(append([]string{"llm.api_key"}, llmEnv...)...)
	_ = v.BindEnv("binance.api_key", "CRYPTO_ALERT_BINANCE_API_KEY", "BINANCE_API_KEY")
	_ = v.BindEnv("binance.api_secret", "CRYPTO_ALERT_BINANCE_API_SECRET", "BINANCE_API_SECRET")
	_ = v.BindEnv("ledger.redis.addr", "CRYPTO_ALERT_LEDGER_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("render", "RENDER")
}

// applyTargetEnv BITCOIN_TARGET_UP / BITCOIN_TARGET_DOWN 覆盖配置文件中的阈值
func applyTargetEnv(assets []Asset) error {
	for i := range assets {
		prefix := envName(assets[i].ID)
		for suffix, dst := range map[string]*float64{
			"_TARGET_UP":   &assets[i].Up,
			"_TARGET_DOWN": &assets[i].Down,
		} {
			raw, ok := os.LookupEnv(prefix + suffix)
			if !ok || strings.TrimSpace(raw) == "" {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s=%q: %w", prefix, suffix, raw, err)
			}
			*dst = f
		}
	}
	return nil
}

// envName avalanche-2 -> AVALANCHE_2
func envName(id string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(id))
}

func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return errors.New("config: no assets configured")
	}
	ids := lo.Map(c.Assets, func(a Asset, _ int) string { return a.ID })
	if lo.Contains(ids, "") {
		return errors.New("config: asset with empty id")
	}
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return fmt.Errorf("config: duplicate assets %v", dup)
	}
	if !lo.Contains([]string{"coingecko", "binance"}, c.Price.Provider) {
		return fmt.Errorf("config: unknown price provider %q", c.Price.Provider)
	}
	if !lo.Contains([]string{"email", "webhook", "console"}, c.Notify.Channel) {
		return fmt.Errorf("config: unknown notify channel %q", c.Notify.Channel)
	}
	if !lo.Contains([]string{"file", "sqlite", "buntdb", "redis"}, c.Ledger.Driver) {
		return fmt.Errorf("config: unknown ledger driver %q", c.Ledger.Driver)
	}
	if !lo.Contains([]string{"groq", "gemini"}, c.LLM.Provider) {
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	if c.Price.Timeout <= 0 {
		return fmt.Errorf("config: price timeout must be positive, got %s", c.Price.Timeout)
	}
	if c.Schedule.CheckInterval <= 0 {
		return fmt.Errorf("config: check_interval must be positive, got %s", c.Schedule.CheckInterval)
	}
	if _, err := schedule.ParseDailyAt(c.Schedule.DigestAt, time.Local); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Targets 按配置顺序转换成阈值策略
func (c *Config) Targets() []threshold.Target {
	return lo.Map(c.Assets, func(a Asset, _ int) threshold.Target {
		return threshold.Target{
			Asset:  a.ID,
			Symbol: a.Symbol,
			Pair:   threshold.Pair{Up: a.Up, Down: a.Down},
		}
	})
}

// Symbols asset id -> 交易所代码, binance 价格源使用
func (c *Config) Symbols() map[string]string {
	return lo.SliceToMap(c.Assets, func(a Asset) (string, string) {
		return a.ID, a.Symbol
	})
}
