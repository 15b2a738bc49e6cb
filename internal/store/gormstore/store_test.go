package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qledger/internal/store"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func trade(fillID, orderID string, volume int64) store.TradeRecord {
	return store.TradeRecord{
		FillID:         fillID,
		OrderID:        orderID,
		InstrumentCode: "600519.SH",
		ExecTime:       time.Date(2026, 8, 28, 10, 0, 0, 0, time.Local),
		TradeDate:      "2026-08-28",
		Price:          10,
		Volume:         volume,
		Amount:         10 * float64(volume),
		Side:           1,
		Source:         "auto",
	}
}

func TestApplyMergeFirstClaimWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	primary, err := s.ApplyMerge(ctx, trade("f2", "o1", 100), []string{"f2"})
	require.NoError(t, err)
	assert.Equal(t, "f2", primary)

	// Later merges propose a different candidate; the claim stands.
	primary, err = s.ApplyMerge(ctx, trade("f1", "o1", 300), []string{"f1", "f2", "f3"})
	require.NoError(t, err)
	assert.Equal(t, "f2", primary)

	rec, found, err := s.GetTrade(ctx, "f2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(300), rec.Volume)

	_, found, err = s.GetTrade(ctx, "f1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestApplyMergeRemovesSupersededRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two partials were once written as separate orders by an older batch;
	// the corrected merge collapses them under one order id.
	_, err := s.ApplyMerge(ctx, trade("f1", "o1", 100), []string{"f1"})
	require.NoError(t, err)
	_, err = s.ApplyMerge(ctx, trade("f2", "o2", 100), []string{"f2"})
	require.NoError(t, err)

	_, err = s.ApplyMerge(ctx, trade("f1", "o1", 200), []string{"f1", "f2"})
	require.NoError(t, err)

	rows, err := s.ListTrades(ctx, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "f1", rows[0].FillID)
	assert.Equal(t, int64(200), rows[0].Volume)
}

func TestApplyMergeValidatesInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyMerge(ctx, store.TradeRecord{FillID: "f1"}, nil)
	assert.Error(t, err)
	_, err = s.ApplyMerge(ctx, store.TradeRecord{OrderID: "o1"}, nil)
	assert.Error(t, err)
}

func TestGetTradeByOrderID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.GetTradeByOrderID(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.ApplyMerge(ctx, trade("f1", "o1", 100), []string{"f1"})
	require.NoError(t, err)

	rec, found, err := s.GetTradeByOrderID(ctx, "o1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "f1", rec.FillID)
}

func TestUpsertOrderOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := store.OrderRecord{
		OrderID:        "o1",
		InstrumentCode: "600519.SH",
		OrderDate:      "2026-08-28",
		OrderVolume:    300,
		TradedVolume:   100,
		Status:         55,
		Raw:            []byte(`{"order_id":"o1"}`),
	}
	require.NoError(t, s.UpsertOrder(ctx, rec))

	rec.TradedVolume = 300
	rec.Status = 56
	require.NoError(t, s.UpsertOrder(ctx, rec))

	rows, err := s.ListOrders(ctx, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(300), rows[0].TradedVolume)
	assert.Equal(t, 56, rows[0].Status)
	assert.JSONEq(t, `{"order_id":"o1"}`, string(rows[0].Raw))
}

func TestListTradesDateFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	early := trade("f1", "o1", 100)
	early.TradeDate = "2026-08-27"
	_, err := s.ApplyMerge(ctx, early, []string{"f1"})
	require.NoError(t, err)
	_, err = s.ApplyMerge(ctx, trade("f2", "o2", 100), []string{"f2"})
	require.NoError(t, err)

	rows, err := s.ListTrades(ctx, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "o2", rows[0].OrderID)

	all, err := s.ListTrades(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
