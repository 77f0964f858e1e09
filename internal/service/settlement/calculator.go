package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

const dailyRatePlaces = 4

// daysBetween counts whole calendar days from a to b. Both are dates at UTC
// midnight.
func daysBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}

// serviceYears counts completed years of service. A remainder of six months
// or more counts as a full year.
func serviceYears(hire, lastDay time.Time) int {
	if hire.IsZero() || lastDay.Before(hire) {
		return 0
	}
	years := lastDay.Year() - hire.Year()
	if hire.AddDate(years, 0, 0).After(lastDay) {
		years--
	}
	if !hire.AddDate(years, 6, 0).After(lastDay) {
		years++
	}
	return years
}

func decimalRate(monthly, days int64) decimal.Decimal {
	return decimal.NewFromInt(monthly).Div(decimal.NewFromInt(days)).Round(dailyRatePlaces)
}

func intDecimal(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
