package decimalx

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	testCases := []struct {
		name string
		d    decimal.Decimal
		want string
	}{
		{name: "small", d: decimal.NewFromInt(300), want: "300"},
		{name: "thousands", d: decimal.NewFromInt(82000), want: "82,000"},
		{name: "millions", d: decimal.NewFromInt(1234567), want: "1,234,567"},
		{name: "fraction", d: MustFromString("101234.56"), want: "101,234.56"},
		{name: "below one", d: decimal.NewFromFloat(0.3), want: "0.3"},
		{name: "negative", d: decimal.NewFromInt(-60000), want: "-60,000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatMoney(tc.d))
		})
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "100,000", FormatFloat(100000))
	assert.Equal(t, "0.5", FormatFloat(0.5))
}

func TestParseFloat(t *testing.T) {
	f, err := ParseFloat(" 82000.01000000 ")
	assert.NoError(t, err)
	assert.Equal(t, 82000.01, f)

	_, err = ParseFloat("n/a")
	assert.Error(t, err)

	_, err = ParseFloat("1e400")
	assert.Error(t, err)
}

func TestFormatFloat_NonFinite(t *testing.T) {
	assert.Equal(t, "+Inf", FormatFloat(math.Inf(1)))
	assert.Equal(t, "NaN", FormatFloat(math.NaN()))
	assert.Equal(t, "82,000.01", FormatFloat(82000.01))
}
