package app

import (
	"context"
	"fmt"
	"time"

	"qledger/internal/broker"
	"qledger/internal/config"
	"qledger/internal/fees"
	"qledger/internal/instrument"
	"qledger/internal/ledger"
	"qledger/internal/logger"
	"qledger/internal/marketdata"
	"qledger/internal/monitor"
	"qledger/internal/store/gormstore"
	qhttp "qledger/internal/transport/http"
)

// components holds everything the app runs plus the handles it must close.
type components struct {
	session    broker.Session
	store      *gormstore.GormStore
	feeReg     *fees.Registry
	directory  *instrument.Directory
	ledgerSvc  *ledger.Service
	monitor    *monitor.Monitor
	barStore   *marketdata.BarStore
	syncer     *marketdata.Syncer
	httpServer *qhttp.Server
	universe   func(ctx context.Context) ([]string, error)
}

func buildComponents(cfg *config.Config) (*components, error) {
	session := newSession(cfg.Broker)

	ledgerStore, err := gormstore.NewGormStore(cfg.Ledger.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	logger.Infof("ledger store ready at %s", cfg.Ledger.DBPath)

	feeReg, err := fees.NewRegistry(cfg.Fees.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load fee rules: %w", err)
	}

	directory, err := instrument.NewDirectory(cfg.Instrument.CachePath, session, cfg.Instrument.Sectors)
	if err != nil {
		return nil, fmt.Errorf("load instrument cache: %w", err)
	}
	logger.Infof("instrument cache: %d names", directory.Size())

	rec := ledger.NewReconciler(ledgerStore, feeReg, directory)
	orders := ledger.NewOrderSynchronizer(ledgerStore, directory)
	ledgerSvc := ledger.NewService(session, cfg.Broker.Account, rec, orders)
	session.RegisterHandler(ledgerSvc)

	probeTimeout := time.Duration(cfg.Broker.ProbeTimeoutSeconds) * time.Second
	mon := monitor.New(session, cfg.Broker.Account, ledgerSvc, probeTimeout)

	barStore, err := marketdata.NewBarStore(cfg.MarketData.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open bar store: %w", err)
	}
	syncer := marketdata.NewSyncer(session, barStore)

	sectors := cfg.Instrument.Sectors
	universe := func(ctx context.Context) ([]string, error) {
		insts, err := session.ListInstruments(ctx, sectors)
		if err != nil {
			return nil, err
		}
		codes := make([]string, 0, len(insts))
		for _, inst := range insts {
			codes = append(codes, inst.Code)
		}
		return codes, nil
	}

	httpServer, err := qhttp.NewServer(qhttp.Config{
		Addr:      cfg.App.HTTPAddr,
		Ledger:    ledgerSvc,
		Store:     ledgerStore,
		Fees:      feeReg,
		Directory: directory,
		Monitor:   mon,
		BarStore:  barStore,
		Syncer:    syncer,
		Universe:  universe,
	})
	if err != nil {
		return nil, err
	}

	return &components{
		session:    session,
		store:      ledgerStore,
		feeReg:     feeReg,
		directory:  directory,
		ledgerSvc:  ledgerSvc,
		monitor:    mon,
		barStore:   barStore,
		syncer:     syncer,
		httpServer: httpServer,
		universe:   universe,
	}, nil
}

func newSession(cfg config.BrokerConfig) broker.Session {
	if cfg.Simulated {
		logger.Warnf("broker: running with the simulated in-process session")
		return broker.NewSimSession()
	}
	return broker.NewBridgeSession(cfg.TerminalPath)
}

func (c *components) close() {
	if c == nil {
		return
	}
	if err := c.feeReg.Close(); err != nil {
		logger.Warnf("close fee registry: %v", err)
	}
	if err := c.barStore.Close(); err != nil {
		logger.Warnf("close bar store: %v", err)
	}
	if err := c.store.Close(); err != nil {
		logger.Warnf("close ledger store: %v", err)
	}
	if err := c.session.Close(); err != nil {
		logger.Warnf("close broker session: %v", err)
	}
}
