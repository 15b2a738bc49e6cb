// Package store declares the persistent record types of the trade ledger and
// the repository surface the reconciler and synchronizer write through.
package store

import (
	"context"
	"time"
)

// TradeRecord is the canonical ledger row for one order: all of its fills
// merged into a single aggregate. FillID is the stable primary key, pinned to
// the first fill ever seen for the order and never reassigned afterwards.
type TradeRecord struct {
	FillID         string
	OrderID        string
	InstrumentCode string
	InstrumentName string

	ExecTime  time.Time
	TradeDate string // YYYY-MM-DD

	OrderType  int
	Direction  int
	OffsetFlag int

	Price  float64 // volume-weighted average execution price
	Volume int64
	Amount float64

	Commission float64
	StampDuty  float64
	OtherFees  float64
	TotalFees  float64

	Side int // +1 buy/open, -1 sell/close, 0 unknown

	StrategyTag string
	Source      string // "auto" | "manual"
	Remark      string
}

// OrderRecord mirrors the latest cumulative order-state snapshot. One row per
// order id; every update overwrites all fields.
type OrderRecord struct {
	OrderID        string
	InstrumentCode string
	InstrumentName string

	OrderTime time.Time
	OrderDate string

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

	Side int

	StrategyTag string
	Source      string
	Remark      string

	Raw []byte // original push payload, when delivered via push
}

// LedgerStore is the transactional repository behind the reconciler and the
// order synchronizer. ApplyMerge is the single write path for canonical trade
// rows; its transaction is the serialization backstop between the push
// handler and pull resyncs racing on the same order.
type LedgerStore interface {
	// ApplyMerge installs the canonical record for rec.OrderID in one
	// transaction: it claims (or reuses) the order's stable primary fill id
	// (rec.FillID is only the candidate), deletes every superseded row among
	// groupFillIDs, and upserts the canonical row. The primary id actually
	// used is returned.
	ApplyMerge(ctx context.Context, rec TradeRecord, groupFillIDs []string) (string, error)

	UpsertOrder(ctx context.Context, rec OrderRecord) error

	GetTrade(ctx context.Context, fillID string) (TradeRecord, bool, error)
	GetTradeByOrderID(ctx context.Context, orderID string) (TradeRecord, bool, error)
	ListTrades(ctx context.Context, date string) ([]TradeRecord, error)
	ListOrders(ctx context.Context, date string) ([]OrderRecord, error)

	Close() error
}
