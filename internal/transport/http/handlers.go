package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"qledger/internal/broker"
	"qledger/internal/fees"
)

func (s *Server) handleConnection(c *gin.Context) {
	if s.cfg.Monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "monitor unavailable"})
		return
	}
	ok, msg := s.cfg.Monitor.CheckConnection(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"connected": ok,
		"state":     s.cfg.Monitor.State().String(),
		"message":   msg,
	})
}

// --- fees ------------------------------------------------------------------

type feePreviewRequest struct {
	Code   string  `json:"code" binding:"required"`
	Price  float64 `json:"price" binding:"required"`
	Volume int64   `json:"volume" binding:"required"`
	Side   int     `json:"side"`
}

func (s *Server) handleFeePreview(c *gin.Context) {
	if s.cfg.Fees == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fee registry unavailable"})
		return
	}
	var req feePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	breakdown := s.cfg.Fees.Compute(req.Code, req.Price, req.Volume, req.Side)
	market, product := fees.Classify(req.Code)
	c.JSON(http.StatusOK, gin.H{
		"market":  market,
		"product": product,
		"fees":    breakdown,
	})
}

func (s *Server) handleFeeRules(c *gin.Context) {
	if s.cfg.Fees == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fee registry unavailable"})
		return
	}
	c.JSON(http.StatusOK, s.cfg.Fees.Snapshot())
}

func (s *Server) handleFeeRulesUpdate(c *gin.Context) {
	if s.cfg.Fees == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fee registry unavailable"})
		return
	}
	var doc fees.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cfg.Fees.Update(doc); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// --- ledger ----------------------------------------------------------------

func (s *Server) handleTrades(c *gin.Context) {
	date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))
	if c.Query("all") == "true" {
		date = ""
	}
	trades, err := s.cfg.Store.ListTrades(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "count": len(trades), "trades": trades})
}

func (s *Server) handleOrders(c *gin.Context) {
	date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))
	if c.Query("all") == "true" {
		date = ""
	}
	orders, err := s.cfg.Store.ListOrders(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "count": len(orders), "orders": orders})
}

type importFillRequest struct {
	FillID  string  `json:"fill_id"`
	OrderID string  `json:"order_id"`
	Code    string  `json:"code" binding:"required"`
	Side    string  `json:"side" binding:"required"` // "buy" | "sell"
	Price   float64 `json:"price" binding:"required"`
	Volume  int64   `json:"volume" binding:"required"`
	Time    int64   `json:"time"` // epoch seconds; defaults to now
	Tag     string  `json:"strategy"`
	Remark  string  `json:"remark"`
}

// handleImport accepts externally captured fills (e.g. spreadsheet exports)
// and routes them through the manual merge path. Missing identities get
// synthetic ones, matching one import row to one order.
func (s *Server) handleImport(c *gin.Context) {
	var reqs []importFillRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	now := time.Now()
	fills := make([]broker.RawFill, 0, len(reqs))
	for i, req := range reqs {
		orderType := broker.StockBuy
		if strings.EqualFold(req.Side, "sell") {
			orderType = broker.StockSell
		}
		execTime := now
		if req.Time > 0 {
			execTime = time.Unix(req.Time, 0)
		}
		fill := broker.RawFill{
			FillID:         req.FillID,
			OrderID:        req.OrderID,
			InstrumentCode: req.Code,
			OrderType:      orderType,
			Price:          req.Price,
			Volume:         req.Volume,
			Amount:         req.Price * float64(req.Volume),
			ExecTime:       execTime,
			StrategyTag:    req.Tag,
			Remark:         req.Remark,
		}
		if fill.FillID == "" {
			fill.FillID = syntheticID("IMPORT", now, i)
		}
		if fill.OrderID == "" {
			fill.OrderID = fill.FillID
		}
		fills = append(fills, fill)
	}
	n, err := s.cfg.Ledger.ImportManual(c.Request.Context(), fills)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

func (s *Server) handleTradeSync(c *gin.Context) {
	trades, orders, err := s.cfg.Ledger.SyncToday(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "orders": orders})
}

// --- instruments -----------------------------------------------------------

func (s *Server) handleInstrument(c *gin.Context) {
	if s.cfg.Directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "instrument directory unavailable"})
		return
	}
	code := c.Param("code")
	c.JSON(http.StatusOK, gin.H{"code": code, "name": s.cfg.Directory.Resolve(code)})
}

func (s *Server) handleInstrumentRefresh(c *gin.Context) {
	if s.cfg.Directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "instrument directory unavailable"})
		return
	}
	count, err := s.cfg.Directory.RefreshAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "count": count})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// --- market data -----------------------------------------------------------

func (s *Server) handleBars(c *gin.Context) {
	if s.cfg.BarStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bar store unavailable"})
		return
	}
	code := c.Param("code")
	bars, err := s.cfg.BarStore.Bars(c.Request.Context(), code, c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "count": len(bars), "bars": bars})
}

func (s *Server) handleMarketDataSync(c *gin.Context) {
	if s.cfg.Syncer == nil || s.cfg.Universe == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data sync unavailable"})
		return
	}
	universe, err := s.cfg.Universe(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	rows, err := s.cfg.Syncer.RunDailySync(c.Request.Context(), universe)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "rows": rows})
		return
	}
	c.JSON(http.StatusOK, gin.H{"instruments": len(universe), "rows": rows})
}

func syntheticID(prefix string, t time.Time, i int) string {
	return prefix + "_" + t.Format("20060102150405") + "_" + strconv.Itoa(i)
}
