package extract

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount reads a numeric token where ',' is the decimal separator.
// Only the first separator is converted; unparsable tokens yield false.
func parseAmount(token string) (decimal.Decimal, bool) {
	s := strings.Replace(strings.TrimSpace(token), ",", ".", 1)
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
