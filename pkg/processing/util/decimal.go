package util

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Round1 rounds computed values to one decimal place
func Round1(d decimal.Decimal) decimal.Decimal {
	return d.Round(1)
}

func Sum(values []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, values...)
}

func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Avg(values[0], values[1:]...)
}

// Percent returns pct percent of base
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

func One() decimal.Decimal {
	return one
}
