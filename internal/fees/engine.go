package fees

import (
	"github.com/shopspring/decimal"
)

// Breakdown is the fee result for one trade, every figure rounded to 4
// decimal places.
type Breakdown struct {
	Commission float64 `json:"commission"`
	StampDuty  float64 `json:"stamp_duty"`
	OtherFees  float64 `json:"other_fees"`
	TotalFees  float64 `json:"total_fees"`
}

// Compute derives the full fee breakdown for a trade. side follows the ledger
// convention: +1 buy/open, -1 sell/close, 0 unknown. Pure over the document
// snapshot; an incomplete table falls back to SH/STOCK and never errors.
func Compute(doc Document, code string, price float64, volume int64, side int) Breakdown {
	market, product := Classify(code)

	products, ok := doc[market]
	if !ok {
		products = doc[MarketSH]
	}
	rules, ok := products[product]
	if !ok {
		rules = products[ProductStock]
	}

	amount := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(volume))

	commission := chargeFor(amount, rules.Commission, side)
	stampDuty := chargeFor(amount, rules.StampDuty, side)
	otherFees := chargeFor(amount, rules.OtherFees, side)
	total := commission.Add(stampDuty).Add(otherFees)

	return Breakdown{
		Commission: round4(commission),
		StampDuty:  round4(stampDuty),
		OtherFees:  round4(otherFees),
		TotalFees:  round4(total),
	}
}

// chargeFor applies one rule: rate*amount rounded to cents, floored at the
// minimum charge, or zero when the mode does not cover this side.
func chargeFor(amount decimal.Decimal, rule Rule, side int) decimal.Decimal {
	chargeable := false
	switch rule.Mode {
	case ModeBoth:
		chargeable = true
	case ModeBuy:
		chargeable = side == 1
	case ModeSell:
		chargeable = side == -1
	}
	if !chargeable {
		return decimal.Zero
	}
	fee := amount.Mul(decimal.NewFromFloat(rule.Rate)).Round(2)
	minFee := decimal.NewFromFloat(rule.MinFee)
	if fee.LessThan(minFee) {
		return minFee
	}
	return fee
}

func round4(v decimal.Decimal) float64 {
	f, _ := v.Round(4).Float64()
	return f
}
