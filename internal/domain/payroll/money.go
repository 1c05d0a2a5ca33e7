// Package payroll holds the pure payroll computations: money rounding, rate
// resolution, hours scaling, line item amounts, run totals and pay periods.
package payroll

import "github.com/shopspring/decimal"

// RoundToCent rounds v half away from zero to two decimal places.
// The value passes through a decimal so 1.005 rounds to 1.01.
func RoundToCent(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Multiply returns round(a × b, 2)
func Multiply(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(2).Float64()
	return f
}

// FinalAmount returns round(hours × rate + adjustment, 2), computed in fixed point
func FinalAmount(hours, rate, adjustment float64) float64 {
	d := decimal.NewFromFloat(hours).
		Mul(decimal.NewFromFloat(rate)).
		Add(decimal.NewFromFloat(adjustment)).
		Round(2)
	f, _ := d.Float64()
	return f
}

// Sum adds values, rounding the running total to the cent after every addition
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v)).Round(2)
	}
	f, _ := total.Float64()
	return f
}
