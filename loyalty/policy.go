package loyalty

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// POINTS POLICY
// =============================================================================

// AmountScale is the number of decimal places a purchase amount may carry.
const AmountScale int32 = 2

// PointsScale is the number of decimal places kept on computed points.
// A 2-place amount times a 1-place factor fits exactly.
const PointsScale int32 = 3

// CreditTermDays is how long after the purchase date points are expected to
// be credited. It is also reported to clients as the billing term.
const CreditTermDays = 30

// CalculatePoints returns amount x factor rounded to PointsScale places.
// Rounding is half away from zero, which is half-up for the positive values
// accepted by RegisterPurchase.
func CalculatePoints(amount, factor decimal.Decimal) decimal.Decimal {
	return amount.Mul(factor).Round(PointsScale)
}

// DueDateFor returns the expected credit date of a purchase made on day.
func DueDateFor(day Date) Date {
	return day.AddDays(CreditTermDays)
}
