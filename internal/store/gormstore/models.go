package gormstore

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"qledger/internal/store"
)

type tradeRecordModel struct {
	ID      int64  `gorm:"column:id;primaryKey"`
	FillID  string `gorm:"column:fill_id;uniqueIndex"`
	OrderID string `gorm:"column:order_id;index"`

	StockCode string `gorm:"column:stock_code;index"`
	StockName string `gorm:"column:stock_name"`

	ExecTimeUnix int64  `gorm:"column:exec_time"`
	TradeDate    string `gorm:"column:trade_date;index"`

	OrderType  int `gorm:"column:order_type"`
	Direction  int `gorm:"column:direction"`
	OffsetFlag int `gorm:"column:offset_flag"`

	Price  float64 `gorm:"column:price"`
	Volume int64   `gorm:"column:volume"`
	Amount float64 `gorm:"column:amount"`

	Commission float64 `gorm:"column:commission"`
	StampDuty  float64 `gorm:"column:stamp_duty"`
	OtherFees  float64 `gorm:"column:other_fees"`
	TotalFees  float64 `gorm:"column:total_fees"`

	Side int `gorm:"column:side"`

	StrategyTag string `gorm:"column:strategy_tag"`
	Source      string `gorm:"column:source"`
	Remark      string `gorm:"column:remark"`
}

func (tradeRecordModel) TableName() string { return "trade_records" }

var tradeUpdateColumns = []string{
	"order_id", "stock_code", "stock_name", "exec_time", "trade_date",
	"order_type", "direction", "offset_flag", "price", "volume", "amount",
	"commission", "stamp_duty", "other_fees", "total_fees", "side",
	"strategy_tag", "source", "remark",
}

type orderRecordModel struct {
	ID      int64  `gorm:"column:id;primaryKey"`
	OrderID string `gorm:"column:order_id;uniqueIndex"`

	StockCode string `gorm:"column:stock_code;index"`
	StockName string `gorm:"column:stock_name"`

	OrderTimeUnix int64  `gorm:"column:order_time"`
	OrderDate     string `gorm:"column:order_date;index"`

	OrderType  int `gorm:"column:order_type"`
	Direction  int `gorm:"column:direction"`
	OffsetFlag int `gorm:"column:offset_flag"`
	PriceType  int `gorm:"column:price_type"`

	OrderVolume  int64   `gorm:"column:order_volume"`
	Price        float64 `gorm:"column:price"`
	TradedVolume int64   `gorm:"column:traded_volume"`
	TradedPrice  float64 `gorm:"column:traded_price"`

	Status    int    `gorm:"column:order_status"`
	StatusMsg string `gorm:"column:status_msg"`

	Side int `gorm:"column:side"`

	StrategyTag string         `gorm:"column:strategy_tag"`
	Source      string         `gorm:"column:source"`
	Remark      string         `gorm:"column:remark"`
	Raw         datatypes.JSON `gorm:"column:raw_payload"`
}

func (orderRecordModel) TableName() string { return "order_records" }

var orderUpdateColumns = []string{
	"stock_code", "stock_name", "order_time", "order_date",
	"order_type", "direction", "offset_flag", "price_type",
	"order_volume", "price", "traded_volume", "traded_price",
	"order_status", "status_msg", "side", "strategy_tag", "source",
	"remark", "raw_payload",
}

// orderPrimaryModel pins the stable primary fill id per order. The first
// merge to claim an order wins; later merges read the claim back instead of
// re-deriving it from their own batch ordering.
type orderPrimaryModel struct {
	OrderID       string `gorm:"column:order_id;primaryKey"`
	PrimaryFillID string `gorm:"column:primary_fill_id"`
}

func (orderPrimaryModel) TableName() string { return "order_primary_ids" }

// --- conversions -----------------------------------------------------------

func newTradeRecordModel(rec store.TradeRecord) tradeRecordModel {
	return tradeRecordModel{
		FillID:       strings.TrimSpace(rec.FillID),
		OrderID:      strings.TrimSpace(rec.OrderID),
		StockCode:    strings.TrimSpace(rec.InstrumentCode),
		StockName:    rec.InstrumentName,
		ExecTimeUnix: rec.ExecTime.Unix(),
		TradeDate:    rec.TradeDate,
		OrderType:    rec.OrderType,
		Direction:    rec.Direction,
		OffsetFlag:   rec.OffsetFlag,
		Price:        rec.Price,
		Volume:       rec.Volume,
		Amount:       rec.Amount,
		Commission:   rec.Commission,
		StampDuty:    rec.StampDuty,
		OtherFees:    rec.OtherFees,
		TotalFees:    rec.TotalFees,
		Side:         rec.Side,
		StrategyTag:  rec.StrategyTag,
		Source:       rec.Source,
		Remark:       rec.Remark,
	}
}

func tradeRecordModelToRecord(m tradeRecordModel) store.TradeRecord {
	return store.TradeRecord{
		FillID:         m.FillID,
		OrderID:        m.OrderID,
		InstrumentCode: m.StockCode,
		InstrumentName: m.StockName,
		ExecTime:       time.Unix(m.ExecTimeUnix, 0),
		TradeDate:      m.TradeDate,
		OrderType:      m.OrderType,
		Direction:      m.Direction,
		OffsetFlag:     m.OffsetFlag,
		Price:          m.Price,
		Volume:         m.Volume,
		Amount:         m.Amount,
		Commission:     m.Commission,
		StampDuty:      m.StampDuty,
		OtherFees:      m.OtherFees,
		TotalFees:      m.TotalFees,
		Side:           m.Side,
		StrategyTag:    m.StrategyTag,
		Source:         m.Source,
		Remark:         m.Remark,
	}
}

func newOrderRecordModel(rec store.OrderRecord) orderRecordModel {
	model := orderRecordModel{
		OrderID:       strings.TrimSpace(rec.OrderID),
		StockCode:     strings.TrimSpace(rec.InstrumentCode),
		StockName:     rec.InstrumentName,
		OrderTimeUnix: rec.OrderTime.Unix(),
		OrderDate:     rec.OrderDate,
		OrderType:     rec.OrderType,
		Direction:     rec.Direction,
		OffsetFlag:    rec.OffsetFlag,
		PriceType:     rec.PriceType,
		OrderVolume:   rec.OrderVolume,
		Price:         rec.Price,
		TradedVolume:  rec.TradedVolume,
		TradedPrice:   rec.TradedPrice,
		Status:        rec.Status,
		StatusMsg:     rec.StatusMsg,
		Side:          rec.Side,
		StrategyTag:   rec.StrategyTag,
		Source:        rec.Source,
		Remark:        rec.Remark,
	}
	if len(rec.Raw) > 0 {
		model.Raw = datatypes.JSON(rec.Raw)
	}
	return model
}

func orderRecordModelToRecord(m orderRecordModel) store.OrderRecord {
	return store.OrderRecord{
		OrderID:        m.OrderID,
		InstrumentCode: m.StockCode,
		InstrumentName: m.StockName,
		OrderTime:      time.Unix(m.OrderTimeUnix, 0),
		OrderDate:      m.OrderDate,
		OrderType:      m.OrderType,
		Direction:      m.Direction,
		OffsetFlag:     m.OffsetFlag,
		PriceType:      m.PriceType,
		OrderVolume:    m.OrderVolume,
		Price:          m.Price,
		TradedVolume:   m.TradedVolume,
		TradedPrice:    m.TradedPrice,
		Status:         m.Status,
		StatusMsg:      m.StatusMsg,
		Side:           m.Side,
		StrategyTag:    m.StrategyTag,
		Source:         m.Source,
		Remark:         m.Remark,
		Raw:            []byte(m.Raw),
	}
}
