package broker

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// The terminal delivers push events as loosely-shaped JSON: field names vary
// between terminal builds (snake_case vs camelCase) and numeric ids sometimes
// arrive as numbers instead of strings. Normalization happens here, once,
// so everything past this boundary works with one value type.

func pick(root gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := root.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func pickString(root gjson.Result, keys ...string) string {
	return strings.TrimSpace(pick(root, keys...).String())
}

// ParseFill decodes a push execution-report payload into a RawFill.
func ParseFill(payload []byte) (RawFill, error) {
	if !gjson.ValidBytes(payload) {
		return RawFill{}, fmt.Errorf("fill payload is not valid json")
	}
	root := gjson.ParseBytes(payload)
	fill := RawFill{
		FillID:         pickString(root, "traded_id", "tradedId", "fill_id"),
		OrderID:        pickString(root, "order_id", "orderId"),
		InstrumentCode: pickString(root, "stock_code", "stockCode", "instrument"),
		OrderType:      int(pick(root, "order_type", "orderType").Int()),
		Direction:      int(pick(root, "direction").Int()),
		OffsetFlag:     int(pick(root, "offset_flag", "offsetFlag").Int()),
		Price:          pick(root, "traded_price", "tradedPrice", "price").Float(),
		Volume:         pick(root, "traded_volume", "tradedVolume", "volume").Int(),
		Amount:         pick(root, "traded_amount", "tradedAmount", "amount").Float(),
		StrategyTag:    pickString(root, "strategy_name", "strategyName"),
		Remark:         pickString(root, "order_remark", "orderRemark", "remark"),
	}
	if ts := pick(root, "traded_time", "tradedTime").Int(); ts > 0 {
		fill.ExecTime = time.Unix(ts, 0)
	} else {
		// No execution timestamp on the wire: fall back to receipt time so
		// the fill never sorts as older than everything else.
		fill.ExecTime = time.Now()
	}
	if fill.FillID == "" {
		return RawFill{}, fmt.Errorf("fill payload missing traded_id")
	}
	if fill.OrderID == "" {
		return RawFill{}, fmt.Errorf("fill payload missing order_id")
	}
	// Some terminal builds report sells with signed quantities; magnitudes
	// are normalized here, the stored Side carries the direction.
	if fill.Volume < 0 {
		fill.Volume = -fill.Volume
	}
	if fill.Amount < 0 {
		fill.Amount = -fill.Amount
	}
	if fill.Amount == 0 && fill.Volume > 0 {
		fill.Amount = fill.Price * float64(fill.Volume)
	}
	return fill, nil
}

// ParseOrder decodes a push order-state payload into an OrderSnapshot. The
// original bytes are retained on the snapshot for diagnostics.
func ParseOrder(payload []byte) (OrderSnapshot, error) {
	if !gjson.ValidBytes(payload) {
		return OrderSnapshot{}, fmt.Errorf("order payload is not valid json")
	}
	root := gjson.ParseBytes(payload)
	snap := OrderSnapshot{
		OrderID:        pickString(root, "order_id", "orderId"),
		InstrumentCode: pickString(root, "stock_code", "stockCode", "instrument"),
		OrderType:      int(pick(root, "order_type", "orderType").Int()),
		Direction:      int(pick(root, "direction").Int()),
		OffsetFlag:     int(pick(root, "offset_flag", "offsetFlag").Int()),
		PriceType:      int(pick(root, "price_type", "priceType").Int()),
		OrderVolume:    pick(root, "order_volume", "orderVolume").Int(),
		Price:          pick(root, "price").Float(),
		TradedVolume:   pick(root, "traded_volume", "tradedVolume").Int(),
		TradedPrice:    pick(root, "traded_price", "tradedPrice").Float(),
		Status:         int(pick(root, "order_status", "orderStatus", "status").Int()),
		StatusMsg:      pickString(root, "status_msg", "statusMsg"),
		StrategyTag:    pickString(root, "strategy_name", "strategyName"),
		Remark:         pickString(root, "order_remark", "orderRemark", "remark"),
		Raw:            append([]byte(nil), payload...),
	}
	if ts := pick(root, "order_time", "orderTime").Int(); ts > 0 {
		snap.OrderTime = time.Unix(ts, 0)
	}
	if snap.OrderID == "" {
		return OrderSnapshot{}, fmt.Errorf("order payload missing order_id")
	}
	return snap, nil
}
