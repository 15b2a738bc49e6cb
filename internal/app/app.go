// Package app wires configuration into running services: broker session,
// ledger, fee registry, health monitor, market-data sync and the HTTP API.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"qledger/internal/config"
	"qledger/internal/logger"
	"qledger/internal/scheduler"
)

type App struct {
	cfg   *config.Config
	parts *components
}

// NewApp builds the full dependency graph from cfg without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	parts, err := buildComponents(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, parts: parts}, nil
}

// Run starts the HTTP server, the connection monitor loop and the daily
// market-data scheduler, then blocks until ctx is cancelled or a service
// fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.parts == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.parts.close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.parts.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	probeInterval := time.Duration(a.cfg.Broker.ProbeIntervalSeconds) * time.Second
	group.Go(func() error {
		a.parts.monitor.Run(ctx, probeInterval)
		return nil
	})

	syncInterval := time.Duration(a.cfg.MarketData.SyncIntervalHours) * time.Hour
	group.Go(func() error {
		sched := scheduler.NewAlignedScheduler(ctx, "marketdata-sync", syncInterval, 30*time.Minute)
		sched.Start(a.runMarketDataSync)
		return nil
	})

	return group.Wait()
}

func (a *App) runMarketDataSync() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()
	universe, err := a.parts.universe(ctx)
	if err != nil {
		logger.Errorf("marketdata sync: resolve universe: %v", err)
		return
	}
	rows, err := a.parts.syncer.RunDailySync(ctx, universe)
	if err != nil {
		logger.Errorf("marketdata sync: %v", err)
		return
	}
	logger.Infof("marketdata sync: %d instruments, %d rows written", len(universe), rows)
}
