// Package money works on int64 amounts in minor currency units. Rate and
// ratio math goes through decimal and is rounded half-up back to the minor
// unit exactly once.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Round rounds d half-up to a whole minor unit.
func Round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// ApplyRate returns amount * rate.
func ApplyRate(amount int64, rate decimal.Decimal) int64 {
	return Round(decimal.NewFromInt(amount).Mul(rate))
}

// Prorate returns amount * num / den. A non-positive den yields zero.
func Prorate(amount int64, num decimal.Decimal, den int64) int64 {
	if den <= 0 {
		return 0
	}
	return Round(decimal.NewFromInt(amount).Mul(num).Div(decimal.NewFromInt(den)))
}

// Sum adds amounts.
func Sum(amounts ...int64) int64 {
	var total int64
	for _, a := range amounts {
		total += a
	}
	return total
}

var printer = message.NewPrinter(language.English)

// Format renders a minor-unit amount for presentation, e.g. "INR 2,708.33".
func Format(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	major := printer.Sprintf("%d", amount/100)
	if currency == "" {
		return fmt.Sprintf("%s%s.%02d", sign, major, amount%100)
	}
	return fmt.Sprintf("%s%s %s.%02d", sign, currency, major, amount%100)
}
