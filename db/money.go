package db

import "github.com/shopspring/decimal"

// RoundAmount rounds a money value to 2 decimal places, half away from zero.
// All money fields pass through here before storage.
func RoundAmount(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// rateString normalizes a money value to a canonical string so that rate
// change detection is not confused by float formatting (3.5 vs 3.50).
func rateString(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
