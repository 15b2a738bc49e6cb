package marketdata

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"qledger/internal/broker"
	"qledger/internal/logger"
)

const (
	// fullHistoryEpoch is the download start when the store is empty.
	fullHistoryEpoch = "20010101"
	// lookbackDays re-requests a trailing window on incremental runs to
	// absorb late corrections without re-downloading full history.
	lookbackDays = 15

	fetchBatchSize  = 50
	upsertBatchSize = 500
)

// Syncer drives the watermark-bounded daily bar download.
type Syncer struct {
	session broker.Session
	store   *BarStore
	nowFn   func() time.Time
}

func NewSyncer(session broker.Session, store *BarStore) *Syncer {
	return &Syncer{session: session, store: store, nowFn: time.Now}
}

// RunDailySync downloads and stores bars for the instrument universe,
// returning the number of rows written. One instrument batch failing to
// fetch is logged and skipped; the next scheduled run picks it up again from
// the stored watermark.
func (s *Syncer) RunDailySync(ctx context.Context, universe []string) (int, error) {
	if s == nil || s.session == nil || s.store == nil {
		return 0, fmt.Errorf("syncer not initialized")
	}
	if len(universe) == 0 {
		return 0, nil
	}
	runID := uuid.NewString()[:8]

	watermarks, err := s.store.Watermarks(ctx)
	if err != nil {
		return 0, fmt.Errorf("query watermarks: %w", err)
	}
	since := fullHistoryEpoch
	if len(watermarks) > 0 {
		since = s.nowFn().AddDate(0, 0, -lookbackDays).Format("20060102")
	}
	logger.Infof("marketdata[%s]: sync start, %d instruments, since=%s", runID, len(universe), since)

	total := 0
	for start := 0; start < len(universe); start += fetchBatchSize {
		end := start + fetchBatchSize
		if end > len(universe) {
			end = len(universe)
		}
		batch := universe[start:end]

		fetched, err := s.session.FetchBars(ctx, batch, since)
		if err != nil {
			logger.Errorf("marketdata[%s]: fetch failed for batch %d-%d: %v", runID, start, end, err)
			continue
		}

		var pending []PriceBar
		for code, bars := range fetched {
			watermark := watermarks[code]
			for _, bar := range bars {
				row, ok := cleanBar(code, bar)
				if !ok {
					continue
				}
				// Incremental filter: nothing at or before the stored
				// watermark is rewritten.
				if watermark != "" && row.Date <= watermark {
					continue
				}
				pending = append(pending, row)
			}
		}

		for len(pending) > 0 {
			chunk := pending
			if len(chunk) > upsertBatchSize {
				chunk = pending[:upsertBatchSize]
			}
			n, err := s.store.UpsertBars(ctx, chunk)
			if err != nil {
				logger.Errorf("marketdata[%s]: upsert failed (%d rows): %v", runID, len(chunk), err)
				break
			}
			total += n
			pending = pending[len(chunk):]
		}
		logger.Infof("marketdata[%s]: progress %d/%d, %d rows stored", runID, end, len(universe), total)
	}
	logger.Infof("marketdata[%s]: sync complete, %d rows", runID, total)
	return total, nil
}

// cleanBar converts a provider bar to a storable row, rejecting rows whose
// open price is missing or non-finite (the data-quality gate).
func cleanBar(code string, bar broker.Bar) (PriceBar, bool) {
	if bar.Time <= 0 {
		return PriceBar{}, false
	}
	if bar.Open == 0 || math.IsNaN(bar.Open) || math.IsInf(bar.Open, 0) {
		return PriceBar{}, false
	}
	return PriceBar{
		Code:        code,
		Date:        time.UnixMilli(bar.Time).Format("2006-01-02"),
		Open:        bar.Open,
		High:        safeFloat(bar.High),
		Low:         safeFloat(bar.Low),
		Close:       safeFloat(bar.Close),
		Volume:      bar.Volume,
		Amount:      safeFloat(bar.Amount),
		PreClose:    safeFloat(bar.PreClose),
		SuspendFlag: bar.SuspendFlag,
	}, true
}

func safeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
