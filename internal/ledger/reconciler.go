package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"

	"qledger/internal/broker"
	"qledger/internal/fees"
	"qledger/internal/instrument"
	"qledger/internal/logger"
	"qledger/internal/store"
)

const dateLayout = "2006-01-02"

// defaultStrategyTag marks fills the terminal reports without a strategy
// name, i.e. manually placed orders.
const defaultStrategyTag = "manual"

// Reconciler folds raw fill batches into canonical trade records, one per
// order id.
type Reconciler struct {
	store  store.LedgerStore
	feeReg *fees.Registry
	names  *instrument.Directory
}

func NewReconciler(ledger store.LedgerStore, feeReg *fees.Registry, names *instrument.Directory) *Reconciler {
	return &Reconciler{store: ledger, feeReg: feeReg, names: names}
}

// MergeAndStore converges fills into one canonical record per order id and
// returns the number of order groups written. The input must be the complete
// known fill set for every order it touches; repeated invocations with
// growing or duplicated sets converge to the same rows. A failing group is
// logged and skipped, the rest of the batch proceeds.
func (r *Reconciler) MergeAndStore(ctx context.Context, fills []broker.RawFill) (int, error) {
	return r.merge(ctx, fills, "auto")
}

// MergeImported is the manual-entry path (spreadsheet imports, corrections);
// rows it produces are marked source=manual so reports can tell them apart
// from terminal-delivered fills.
func (r *Reconciler) MergeImported(ctx context.Context, fills []broker.RawFill) (int, error) {
	return r.merge(ctx, fills, "manual")
}

func (r *Reconciler) merge(ctx context.Context, fills []broker.RawFill, source string) (int, error) {
	if r == nil || r.store == nil {
		return 0, fmt.Errorf("reconciler not initialized")
	}
	if len(fills) == 0 {
		return 0, nil
	}

	groups := make(map[string][]broker.RawFill)
	for _, fill := range fills {
		if fill.OrderID == "" || fill.FillID == "" {
			logger.Warnf("ledger: dropping fill without identity (fill=%q order=%q)", fill.FillID, fill.OrderID)
			continue
		}
		groups[fill.OrderID] = append(groups[fill.OrderID], fill)
	}

	processed := 0
	for orderID, group := range groups {
		if err := r.mergeGroup(ctx, orderID, group, source); err != nil {
			logger.Errorf("ledger: merge failed order=%s fills=%d: %v", orderID, len(group), err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (r *Reconciler) mergeGroup(ctx context.Context, orderID string, group []broker.RawFill, source string) error {
	// Exact duplicates (push + pull overlap) collapse on fill id before
	// anything is summed.
	seen := make(map[string]struct{}, len(group))
	dedup := group[:0]
	for _, fill := range group {
		if _, ok := seen[fill.FillID]; ok {
			continue
		}
		seen[fill.FillID] = struct{}{}
		dedup = append(dedup, fill)
	}
	group = dedup

	sort.Slice(group, func(i, j int) bool {
		if !group[i].ExecTime.Equal(group[j].ExecTime) {
			return group[i].ExecTime.Before(group[j].ExecTime)
		}
		return group[i].FillID < group[j].FillID
	})
	first, last := group[0], group[len(group)-1]

	var totalVolume int64
	var totalAmount float64
	fillIDs := make([]string, 0, len(group))
	for _, fill := range group {
		// Quantities aggregate as magnitudes regardless of how the source
		// signed them; Side carries the direction.
		volume := fill.Volume
		if volume < 0 {
			volume = -volume
		}
		totalVolume += volume
		totalAmount += math.Abs(fill.Amount)
		fillIDs = append(fillIDs, fill.FillID)
	}
	if totalVolume == 0 {
		logger.Warnf("ledger: order %s has zero aggregate volume, skipped", orderID)
		return nil
	}
	avgPrice := totalAmount / float64(totalVolume)

	side := ClassifySide(first.OrderType, first.Direction, first.OffsetFlag)
	breakdown := r.feeReg.Compute(first.InstrumentCode, avgPrice, totalVolume, side)

	name := first.InstrumentCode
	if r.names != nil {
		name = r.names.Resolve(first.InstrumentCode)
	}
	tag := first.StrategyTag
	if tag == "" {
		tag = defaultStrategyTag
	}

	rec := store.TradeRecord{
		FillID:         first.FillID, // candidate only; the store keeps an earlier claim
		OrderID:        orderID,
		InstrumentCode: first.InstrumentCode,
		InstrumentName: name,
		ExecTime:       last.ExecTime,
		TradeDate:      last.ExecTime.Format(dateLayout),
		OrderType:      first.OrderType,
		Direction:      first.Direction,
		OffsetFlag:     first.OffsetFlag,
		Price:          avgPrice,
		Volume:         totalVolume,
		Amount:         totalAmount,
		Commission:     breakdown.Commission,
		StampDuty:      breakdown.StampDuty,
		OtherFees:      breakdown.OtherFees,
		TotalFees:      breakdown.TotalFees,
		Side:           side,
		StrategyTag:    tag,
		Source:         source,
		Remark:         first.Remark,
	}

	primaryID, err := r.store.ApplyMerge(ctx, rec, fillIDs)
	if err != nil {
		return err
	}
	logger.Debugf("ledger: order %s merged %d fills into %s (vol=%d avg=%.4f fees=%.4f)",
		orderID, len(group), primaryID, totalVolume, avgPrice, breakdown.TotalFees)
	return nil
}
