package sms

import "github.com/shopspring/decimal"

// Per-message provider rates in dollars
const (
	SMSRate = 0.0079
	MMSRate = 0.0200
)

// EstimateCost returns the cost of sending to recipientCount recipients.
// Media messages are billed at the flat MMS rate per recipient regardless of
// segments; text messages cost segments × SMSRate each.
func EstimateCost(recipientCount, segmentsPerMessage int, hasMedia bool) float64 {
	if recipientCount <= 0 {
		return 0
	}

	recipients := decimal.NewFromInt(int64(recipientCount))
	var cost decimal.Decimal
	if hasMedia {
		cost = recipients.Mul(decimal.NewFromFloat(MMSRate))
	} else {
		if segmentsPerMessage <= 0 {
			return 0
		}
		cost = recipients.Mul(decimal.NewFromInt(int64(segmentsPerMessage))).Mul(decimal.NewFromFloat(SMSRate))
	}

	f, _ := cost.Round(4).Float64()
	return f
}
