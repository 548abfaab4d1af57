package common

import "github.com/shopspring/decimal"

// DecimalToFixed rounds num to precision decimal places, half away from zero.
// Rounding is done on the shortest decimal representation of num,
// so 2.675 rounds to 2.68 rather than to the 2.67 binary floats would give.
func DecimalToFixed(num float64, precision int) float64 {
	f, _ := decimal.NewFromFloat(num).Round(int32(precision)).Float64()
	return f
}
