package ledger

import (
	"context"
	"fmt"

	"qledger/internal/broker"
	"qledger/internal/instrument"
	"qledger/internal/store"
)

// OrderSynchronizer mirrors cumulative order-state snapshots into the order
// table. The terminal reports full state on every update, so there is no
// merge: last write wins on every field, and replaying the same snapshot is
// a no-op by construction.
type OrderSynchronizer struct {
	store store.LedgerStore
	names *instrument.Directory
}

func NewOrderSynchronizer(ledger store.LedgerStore, names *instrument.Directory) *OrderSynchronizer {
	return &OrderSynchronizer{store: ledger, names: names}
}

// UpsertOrder classifies, enriches and upserts one snapshot keyed by its
// unique order id.
func (o *OrderSynchronizer) UpsertOrder(ctx context.Context, snap broker.OrderSnapshot) error {
	if o == nil || o.store == nil {
		return fmt.Errorf("order synchronizer not initialized")
	}
	if snap.OrderID == "" {
		return fmt.Errorf("order snapshot missing order_id")
	}

	name := snap.InstrumentCode
	if o.names != nil {
		name = o.names.Resolve(snap.InstrumentCode)
	}
	tag := snap.StrategyTag
	if tag == "" {
		tag = defaultStrategyTag
	}

	rec := store.OrderRecord{
		OrderID:        snap.OrderID,
		InstrumentCode: snap.InstrumentCode,
		InstrumentName: name,
		OrderTime:      snap.OrderTime,
		OrderDate:      snap.OrderTime.Format(dateLayout),
		OrderType:      snap.OrderType,
		Direction:      snap.Direction,
		OffsetFlag:     snap.OffsetFlag,
		PriceType:      snap.PriceType,
		OrderVolume:    snap.OrderVolume,
		Price:          snap.Price,
		TradedVolume:   snap.TradedVolume,
		TradedPrice:    snap.TradedPrice,
		Status:         snap.Status,
		StatusMsg:      snap.StatusMsg,
		Side:           ClassifySide(snap.OrderType, snap.Direction, snap.OffsetFlag),
		StrategyTag:    tag,
		Source:         "auto",
		Remark:         snap.Remark,
		Raw:            snap.Raw,
	}
	return o.store.UpsertOrder(ctx, rec)
}
