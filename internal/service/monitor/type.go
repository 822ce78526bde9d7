package monitor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Summary 一次周期内按资产顺序生成的文本行, 不持久化
type Summary []string

func (s Summary) String() string {
	return strings.Join(s, "\n")
}

// displayName bitcoin -> Bitcoin
func displayName(asset string) string {
	r, size := utf8.DecodeRuneInString(asset)
	if r == utf8.RuneError {
		return asset
	}
	return string(unicode.ToUpper(r)) + asset[size:]
}
