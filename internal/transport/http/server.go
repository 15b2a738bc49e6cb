// Package http exposes the ledger's upward-facing API: fee preview and rule
// management, trade/order queries, manual imports, connection checks and
// sync triggers. The dashboard consuming it lives elsewhere.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"qledger/internal/fees"
	"qledger/internal/instrument"
	"qledger/internal/ledger"
	"qledger/internal/logger"
	"qledger/internal/marketdata"
	"qledger/internal/monitor"
	"qledger/internal/store"
)

// Config carries the server's collaborators.
type Config struct {
	Addr string

	Ledger    *ledger.Service
	Store     store.LedgerStore
	Fees      *fees.Registry
	Directory *instrument.Directory
	Monitor   *monitor.Monitor
	BarStore  *marketdata.BarStore
	Syncer    *marketdata.Syncer
	Universe  func(ctx context.Context) ([]string, error)
}

// Server wraps the gin engine and an http.Server lifecycle.
type Server struct {
	cfg    Config
	router *gin.Engine
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Ledger == nil || cfg.Store == nil {
		return nil, errors.New("http server requires the ledger service and store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{cfg: cfg, router: router}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	api.GET("/connection", s.handleConnection)

	api.POST("/fees/preview", s.handleFeePreview)
	api.GET("/fees/rules", s.handleFeeRules)
	api.PUT("/fees/rules", s.handleFeeRulesUpdate)

	api.GET("/trades", s.handleTrades)
	api.GET("/orders", s.handleOrders)
	api.POST("/trades/import", s.handleImport)
	api.POST("/sync/trades", s.handleTradeSync)

	api.GET("/instruments/:code", s.handleInstrument)
	api.POST("/instruments/refresh", s.handleInstrumentRefresh)

	api.GET("/bars/:code", s.handleBars)
	api.POST("/sync/marketdata", s.handleMarketDataSync)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http: listening on %s", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return <-errCh
	case err := <-errCh:
		return err
	}
}
