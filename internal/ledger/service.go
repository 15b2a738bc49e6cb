package ledger

import (
	"context"
	"fmt"
	"time"

	"qledger/internal/broker"
	"qledger/internal/logger"
)

const pushTimeout = 5 * time.Second

// Service joins the two delivery paths, live push events and on-demand bulk
// queries, in front of the reconciler and order synchronizer. It implements
// broker.Handler so it can be registered directly on the session.
type Service struct {
	session broker.Session
	account string

	rec    *Reconciler
	orders *OrderSynchronizer
	cache  *fillCache
}

func NewService(session broker.Session, account string, rec *Reconciler, orders *OrderSynchronizer) *Service {
	return &Service{
		session: session,
		account: account,
		rec:     rec,
		orders:  orders,
		cache:   newFillCache(),
	}
}

// MergeAndStore feeds an externally assembled fill batch (e.g. a manual
// import) through the cache and reconciler.
func (s *Service) MergeAndStore(ctx context.Context, fills []broker.RawFill) (int, error) {
	if len(fills) == 0 {
		return 0, nil
	}
	return s.rec.MergeAndStore(ctx, s.cache.absorb(fills...))
}

// ImportManual ingests externally sourced fills (spreadsheet rows, manual
// corrections). They go through the same cache and merge path but are marked
// source=manual.
func (s *Service) ImportManual(ctx context.Context, fills []broker.RawFill) (int, error) {
	if len(fills) == 0 {
		return 0, nil
	}
	return s.rec.MergeImported(ctx, s.cache.absorb(fills...))
}

// UpsertOrder applies one cumulative order snapshot.
func (s *Service) UpsertOrder(ctx context.Context, snap broker.OrderSnapshot) error {
	return s.orders.UpsertOrder(ctx, snap)
}

// SyncToday pulls the current day's fills and orders from the terminal and
// replays them through the same upsert paths the push channel uses. This is
// the sole backfill mechanism for events missed while disconnected.
func (s *Service) SyncToday(ctx context.Context) (trades, orders int, err error) {
	if s == nil || s.session == nil {
		return 0, 0, fmt.Errorf("ledger service has no session")
	}

	fills, err := s.session.QueryFills(ctx, s.account)
	if err != nil {
		return 0, 0, fmt.Errorf("query fills: %w", err)
	}
	trades, err = s.rec.MergeAndStore(ctx, s.cache.absorb(fills...))
	if err != nil {
		return trades, 0, err
	}

	snaps, err := s.session.QueryOrders(ctx, s.account)
	if err != nil {
		return trades, 0, fmt.Errorf("query orders: %w", err)
	}
	for _, snap := range snaps {
		if err := s.orders.UpsertOrder(ctx, snap); err != nil {
			logger.Errorf("ledger: order sync failed order=%s: %v", snap.OrderID, err)
			continue
		}
		orders++
	}
	logger.Infof("ledger: bulk sync done, %d trade groups, %d orders", trades, orders)
	return trades, orders, nil
}

// --- broker.Handler --------------------------------------------------------

// OnFill handles a live execution report. The cache turns the single event
// into the complete known fill set for its order before merging, so a push
// racing an earlier partial merge still converges.
func (s *Service) OnFill(fill broker.RawFill) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if _, err := s.rec.MergeAndStore(ctx, s.cache.absorb(fill)); err != nil {
		logger.Errorf("ledger: push fill failed fill=%s: %v", fill.FillID, err)
	}
}

// OnOrderUpdate handles a live order-state report.
func (s *Service) OnOrderUpdate(snap broker.OrderSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := s.orders.UpsertOrder(ctx, snap); err != nil {
		logger.Errorf("ledger: push order failed order=%s: %v", snap.OrderID, err)
	}
}

// OnDisconnected only logs; the health monitor owns detection and recovery.
func (s *Service) OnDisconnected() {
	logger.Warnf("ledger: terminal reported disconnect")
}

var _ broker.Handler = (*Service)(nil)
