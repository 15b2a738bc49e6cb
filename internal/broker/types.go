// Package broker defines the typed surface of the brokerage terminal session.
// The wire protocol and handshake live inside the vendor terminal; this
// package only models what crosses the boundary: execution reports, order
// snapshots, instrument metadata and daily bars.
package broker

import "time"

// Order type codes as reported by the terminal.
const (
	StockBuy  = 23
	StockSell = 24

	CreditBuy           = 33
	CreditSell          = 34
	CreditFinBuy        = 27
	CreditSloSell       = 28
	CreditBuySecuRepay  = 29
	CreditSellSecuRepay = 31
)

// Direction / offset flag codes.
const (
	DirectionLong  = 48
	DirectionShort = 49
	OffsetOpen     = 48
	OffsetClose    = 49
)

// Order status codes.
const (
	OrderUnreported = 48
	OrderReported   = 50
	OrderCanceled   = 54
	OrderPartFilled = 55
	OrderFilled     = 56
	OrderJunk       = 57
)

// RawFill is one execution report. A single order may produce several fills,
// and the same fill may be delivered more than once (push + pull overlap);
// FillID is the global dedup key.
type RawFill struct {
	FillID         string
	OrderID        string
	InstrumentCode string

	OrderType  int
	Direction  int
	OffsetFlag int

	Price  float64 // execution price of this fill
	Volume int64   // always positive
	Amount float64 // Price*Volume as reported upstream

	ExecTime time.Time

	StrategyTag string
	Remark      string
}

// OrderSnapshot is a cumulative order-state report. Every snapshot carries the
// full current state, so the newest one always wins.
type OrderSnapshot struct {
	OrderID        string
	InstrumentCode string

	OrderType  int
	Direction  int
	OffsetFlag int
	PriceType  int

	OrderVolume  int64
	Price        float64
	TradedVolume int64
	TradedPrice  float64

	Status    int
	StatusMsg string

	OrderTime time.Time

	StrategyTag string
	Remark      string

	// Raw keeps the original payload for diagnostics; may be empty on pull.
	Raw []byte
}

// Instrument is the directory entry for one listed security.
type Instrument struct {
	Code string
	Name string
}

// Bar is one daily price bar as returned by the terminal's history store.
// Time is a millisecond epoch; OHLC values may be NaN for suspended sessions.
type Bar struct {
	Time        int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      int64
	Amount      float64
	PreClose    float64
	SuspendFlag int
}
