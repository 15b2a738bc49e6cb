// Package ledger converges raw brokerage events into the canonical trade and
// order tables: fill merging with stable identity, cumulative order-state
// upserts, and the signed side classification both depend on.
package ledger

import "qledger/internal/broker"

// ClassifySide maps the terminal's raw (order type, direction, offset flag)
// triple to the signed direction coefficient: +1 buy/open, -1 sell/close.
// Combinations outside the known table return 0, explicitly unknown rather
// than guessed, so downstream aggregation can single them out. Used for fee mode
// selection and stored for position/cash delta computation
// (delta position = volume*side, delta cash = -amount*side - commission).
func ClassifySide(orderType, direction, offsetFlag int) int {
	switch orderType {
	case broker.StockBuy:
		return 1
	case broker.StockSell:
		return -1
	case broker.CreditBuy, broker.CreditFinBuy, broker.CreditBuySecuRepay:
		return 1
	case broker.CreditSell, broker.CreditSloSell, broker.CreditSellSecuRepay:
		return -1
	}
	return 0
}
