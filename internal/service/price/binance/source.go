package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KNICEX/crypto-alert/internal/service/price"
	"github.com/KNICEX/crypto-alert/pkg/decimalx"
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

// 币安 invalid symbol 错误码
const codeInvalidSymbol = -1121

var _ price.Source = (*Source)(nil)

type Source struct {
	cli     *binance.Client
	quote   string
	timeout time.Duration
	// asset id -> base symbol, e.g. bitcoin -> BTC
	symbols map[string]string
}

func NewSource(cli *binance.Client, symbols map[string]string, quote string) *Source {
	if quote == "" {
		quote = "USDT"
	}
	return &Source{
		cli:     cli,
		quote:   strings.ToUpper(quote),
		timeout: 10 * time.Second,
		symbols: symbols,
	}
}

func (s *Source) Name() string {
	return "binance"
}

func (s *Source) tradingSymbol(asset string) string {
	base, ok := s.symbols[asset]
	if !ok || base == "" {
		base = asset
	}
	return strings.ToUpper(base) + s.quote
}

func (s *Source) Fetch(ctx context.Context, asset string) price.Reading {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	symbol := s.tradingSymbol(asset)
	prices, err := s.cli.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Code == codeInvalidSymbol {
				return price.Absent(asset, price.ReasonMissingKey, err)
			}
			return price.Absent(asset, price.ReasonStatus, err)
		}
		return price.Absent(asset, price.ReasonTransport, err)
	}
	if len(prices) == 0 {
		return price.Absent(asset, price.ReasonMissingKey, fmt.Errorf("symbol %s not found", symbol))
	}
	p, err := decimalx.ParseFloat(prices[0].Price)
	if err != nil {
		return price.Absent(asset, price.ReasonDecode, err)
	}
	return price.Present(asset, p)
}
