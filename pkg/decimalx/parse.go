package decimalx

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

func MustFromString(s string) decimal.Decimal {
	res, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return res
}

// ParseFloat 交易所返回的价格字符串, 如 "82000.01000000"
func ParseFloat(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s out of float64 range", s)
	}
	return f, nil
}
