package decimalx

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney 千分位格式化, 82000 -> "82,000", 0.3 -> "0.3"
func FormatMoney(d decimal.Decimal) string {
	s := d.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

func FormatFloat(f float64) string {
	// NewFromFloat 遇到 Inf/NaN 会 panic
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return FormatMoney(decimal.NewFromFloat(f))
}
