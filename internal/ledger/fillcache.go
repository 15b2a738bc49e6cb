package ledger

import (
	"sync"

	"qledger/internal/broker"
)

// fillCache accumulates every fill seen for an order during the process
// lifetime. The merge algorithm requires its input to be the complete known
// fill set per order; a single push event is not, so the cache unions pushes
// with earlier pushes and with bulk query results before anything reaches
// the reconciler. Duplicates collapse on fill id.
type fillCache struct {
	mu     sync.Mutex
	orders map[string]map[string]broker.RawFill
}

func newFillCache() *fillCache {
	return &fillCache{orders: make(map[string]map[string]broker.RawFill)}
}

// absorb records the fills and returns the complete known set for every
// order id present in the input.
func (c *fillCache) absorb(fills ...broker.RawFill) []broker.RawFill {
	c.mu.Lock()
	defer c.mu.Unlock()

	touched := make(map[string]struct{})
	for _, fill := range fills {
		if fill.FillID == "" || fill.OrderID == "" {
			continue
		}
		byID, ok := c.orders[fill.OrderID]
		if !ok {
			byID = make(map[string]broker.RawFill)
			c.orders[fill.OrderID] = byID
		}
		byID[fill.FillID] = fill
		touched[fill.OrderID] = struct{}{}
	}

	var out []broker.RawFill
	for orderID := range touched {
		for _, fill := range c.orders[orderID] {
			out = append(out, fill)
		}
	}
	return out
}
