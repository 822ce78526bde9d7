package ioc

import (
	"github.com/KNICEX/crypto-alert/internal/config"
	"github.com/KNICEX/crypto-alert/internal/service/price"
	"github.com/KNICEX/crypto-alert/internal/service/price/binance"
	"github.com/KNICEX/crypto-alert/internal/service/price/coingecko"
)

func InitPriceSource(cfg *config.Config) price.Source {
	if cfg.Price.Provider == "binance" {
		return binance.NewSource(InitBinanceCli(cfg.Binance), cfg.Symbols(), cfg.Price.Quote)
	}
	return coingecko.NewSource(
		coingecko.WithBaseURL(cfg.Price.BaseURL),
		coingecko.WithVsCurrency(cfg.Price.VsCurrency),
		coingecko.WithTimeout(cfg.Price.Timeout),
		coingecko.WithRateLimit(cfg.Price.RatePerMinute),
		coingecko.WithBreaker(cfg.Price.BreakerFailures, cfg.Price.BreakerCooldown),
	)
}
