package marketdata

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qledger/internal/broker"
)

func newTestBarStore(t *testing.T) *BarStore {
	t.Helper()
	store, err := NewBarStore(filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dayBar(day time.Time, open float64) broker.Bar {
	return broker.Bar{
		Time:   day.UnixMilli(),
		Open:   open,
		High:   open + 0.2,
		Low:    open - 0.2,
		Close:  open + 0.1,
		Volume: 1000,
		Amount: open * 1000,
	}
}

func TestRunDailySyncFullHistory(t *testing.T) {
	store := newTestBarStore(t)
	session := broker.NewSimSession()
	day1 := time.Date(2026, 8, 25, 0, 0, 0, 0, time.Local)
	day2 := day1.AddDate(0, 0, 1)
	session.SeedBars("600519.SH", dayBar(day1, 10.0), dayBar(day2, 10.5))

	syncer := NewSyncer(session, store)
	n, err := syncer.RunDailySync(context.Background(), []string{"600519.SH"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	bars, err := store.Bars(context.Background(), "600519.SH", "", "")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2026-08-25", bars[0].Date)
	assert.Equal(t, 10.0, bars[0].Open)
}

func TestRunDailySyncRespectsWatermark(t *testing.T) {
	store := newTestBarStore(t)
	session := broker.NewSimSession()
	day1 := time.Date(2026, 8, 25, 0, 0, 0, 0, time.Local)
	day2 := day1.AddDate(0, 0, 1)

	_, err := store.UpsertBars(context.Background(), []PriceBar{{
		Code: "600519.SH", Date: "2026-08-25", Open: 10.0, Close: 10.1,
	}})
	require.NoError(t, err)

	// A corrected day1 bar arrives alongside day2; only day2 may land
	// because day1 sits at the watermark.
	session.SeedBars("600519.SH", dayBar(day1, 99.0), dayBar(day2, 10.5))

	syncer := NewSyncer(session, store)
	syncer.nowFn = func() time.Time { return day2 }
	n, err := syncer.RunDailySync(context.Background(), []string{"600519.SH"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	bars, err := store.Bars(context.Background(), "600519.SH", "", "")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 10.0, bars[0].Open, "watermarked bar must not be rewritten")
	assert.Equal(t, "2026-08-26", bars[1].Date)
}

func TestRunDailySyncRejectsBadBars(t *testing.T) {
	store := newTestBarStore(t)
	session := broker.NewSimSession()
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.Local)

	zeroOpen := dayBar(day, 10.0)
	zeroOpen.Open = 0
	nanOpen := dayBar(day.AddDate(0, 0, 1), 10.0)
	nanOpen.Open = math.NaN()
	noTime := dayBar(day.AddDate(0, 0, 2), 10.0)
	noTime.Time = 0
	good := dayBar(day.AddDate(0, 0, 3), 10.0)
	good.High = math.Inf(1) // non-finite secondary fields are zeroed, not fatal
	session.SeedBars("600519.SH", zeroOpen, nanOpen, noTime, good)

	syncer := NewSyncer(session, store)
	n, err := syncer.RunDailySync(context.Background(), []string{"600519.SH"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	bars, err := store.Bars(context.Background(), "600519.SH", "", "")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2026-08-28", bars[0].Date)
	assert.Equal(t, 0.0, bars[0].High)
}

func TestRunDailySyncEmptyUniverse(t *testing.T) {
	store := newTestBarStore(t)
	syncer := NewSyncer(broker.NewSimSession(), store)
	n, err := syncer.RunDailySync(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpsertBarsReplacesRow(t *testing.T) {
	store := newTestBarStore(t)
	ctx := context.Background()

	_, err := store.UpsertBars(ctx, []PriceBar{{
		Code: "600519.SH", Date: "2026-08-25", Open: 10.0, Close: 10.1,
	}})
	require.NoError(t, err)
	_, err = store.UpsertBars(ctx, []PriceBar{{
		Code: "600519.SH", Date: "2026-08-25", Open: 10.0, Close: 10.4,
	}})
	require.NoError(t, err)

	bars, err := store.Bars(ctx, "600519.SH", "", "")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 10.4, bars[0].Close)
}

func TestWatermarks(t *testing.T) {
	store := newTestBarStore(t)
	ctx := context.Background()

	marks, err := store.Watermarks(ctx)
	require.NoError(t, err)
	assert.Empty(t, marks)

	_, err = store.UpsertBars(ctx, []PriceBar{
		{Code: "600519.SH", Date: "2026-08-24", Open: 10},
		{Code: "600519.SH", Date: "2026-08-25", Open: 10},
		{Code: "000001.SZ", Date: "2026-08-20", Open: 9},
	})
	require.NoError(t, err)

	marks, err = store.Watermarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"600519.SH": "2026-08-25",
		"000001.SZ": "2026-08-20",
	}, marks)
}

func TestBarsRangeFilter(t *testing.T) {
	store := newTestBarStore(t)
	ctx := context.Background()

	_, err := store.UpsertBars(ctx, []PriceBar{
		{Code: "600519.SH", Date: "2026-08-24", Open: 10},
		{Code: "600519.SH", Date: "2026-08-25", Open: 10},
		{Code: "600519.SH", Date: "2026-08-26", Open: 10},
	})
	require.NoError(t, err)

	bars, err := store.Bars(ctx, "600519.SH", "2026-08-25", "2026-08-25")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2026-08-25", bars[0].Date)
}
