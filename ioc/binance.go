package ioc

import (
	"log/slog"

	"github.com/KNICEX/crypto-alert/internal/config"
	"github.com/adshao/go-binance/v2"
)

// InitBinanceCli 只用到公开行情接口, key 可以为空
func InitBinanceCli(cfg config.Binance) *binance.Client {
	binance.UseTestnet = cfg.Testnet
	cli := binance.NewClient(cfg.ApiKey, cfg.ApiSecret)
	if cfg.BaseURL != "" {
		cli.BaseURL = cfg.BaseURL
	}
	slog.Debug("binance client ready", "base_url", cli.BaseURL, "testnet", cfg.Testnet)
	return cli
}
