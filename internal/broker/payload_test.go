package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFillSnakeCase(t *testing.T) {
	payload := []byte(`{
		"traded_id": "f1",
		"order_id": "o1",
		"stock_code": "600519.SH",
		"order_type": 23,
		"traded_price": 10.5,
		"traded_volume": 100,
		"traded_amount": 1050,
		"traded_time": 1756300000,
		"strategy_name": "grid",
		"order_remark": "r"
	}`)
	fill, err := ParseFill(payload)
	require.NoError(t, err)
	assert.Equal(t, "f1", fill.FillID)
	assert.Equal(t, "o1", fill.OrderID)
	assert.Equal(t, "600519.SH", fill.InstrumentCode)
	assert.Equal(t, StockBuy, fill.OrderType)
	assert.Equal(t, 10.5, fill.Price)
	assert.Equal(t, int64(100), fill.Volume)
	assert.Equal(t, 1050.0, fill.Amount)
	assert.Equal(t, time.Unix(1756300000, 0), fill.ExecTime)
	assert.Equal(t, "grid", fill.StrategyTag)
}

func TestParseFillCamelCaseAndNumericIDs(t *testing.T) {
	payload := []byte(`{
		"tradedId": 42,
		"orderId": 7,
		"stockCode": "000001.SZ",
		"orderType": 24,
		"tradedPrice": 9.9,
		"tradedVolume": 200
	}`)
	fill, err := ParseFill(payload)
	require.NoError(t, err)
	assert.Equal(t, "42", fill.FillID)
	assert.Equal(t, "7", fill.OrderID)
	// Amount absent in the payload gets reconstructed from price*volume.
	assert.InDelta(t, 1980.0, fill.Amount, 1e-9)
}

func TestParseFillNormalizesSignedQuantities(t *testing.T) {
	payload := []byte(`{
		"traded_id": "f1",
		"order_id": "o1",
		"stock_code": "600519.SH",
		"order_type": 24,
		"traded_price": 10,
		"traded_volume": -100,
		"traded_amount": -1000,
		"traded_time": 1756300000
	}`)
	fill, err := ParseFill(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(100), fill.Volume)
	assert.Equal(t, 1000.0, fill.Amount)
}

func TestParseFillDefaultsExecTimeToReceipt(t *testing.T) {
	before := time.Now()
	fill, err := ParseFill([]byte(`{"traded_id":"f1","order_id":"o1","traded_volume":100}`))
	require.NoError(t, err)
	// Without a wire timestamp the fill must not sort as infinitely old.
	assert.False(t, fill.ExecTime.IsZero())
	assert.WithinRange(t, fill.ExecTime, before, time.Now())
}

func TestParseFillRejectsMissingIdentity(t *testing.T) {
	_, err := ParseFill([]byte(`{"order_id":"o1","traded_volume":100}`))
	assert.Error(t, err)

	_, err = ParseFill([]byte(`{"traded_id":"f1","traded_volume":100}`))
	assert.Error(t, err)

	_, err = ParseFill([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	payload := []byte(`{
		"order_id": "o1",
		"stock_code": "600519.SH",
		"order_type": 23,
		"order_volume": 300,
		"price": 10.2,
		"traded_volume": 100,
		"traded_price": 10.1,
		"order_status": 55,
		"status_msg": "part filled",
		"order_time": 1756300000
	}`)
	snap, err := ParseOrder(payload)
	require.NoError(t, err)
	assert.Equal(t, "o1", snap.OrderID)
	assert.Equal(t, int64(300), snap.OrderVolume)
	assert.Equal(t, int64(100), snap.TradedVolume)
	assert.Equal(t, OrderPartFilled, snap.Status)
	assert.Equal(t, "part filled", snap.StatusMsg)
	assert.JSONEq(t, string(payload), string(snap.Raw))

	_, err = ParseOrder([]byte(`{"stock_code":"600519.SH"}`))
	assert.Error(t, err)
}
