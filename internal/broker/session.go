package broker

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by query methods when the terminal link is down.
var ErrNotConnected = errors.New("broker: session not connected")

// Handler receives asynchronous push events from the session. Delivery is
// at-least-once and unordered relative to pull queries; consumers must be
// idempotent.
type Handler interface {
	OnFill(fill RawFill)
	OnOrderUpdate(order OrderSnapshot)
	OnDisconnected()
}

// Session is the opaque capability set of the brokerage terminal. Connect is
// cheap and idempotent when already connected, which makes it usable as a
// liveness probe. All methods honor ctx deadlines; a hung terminal surfaces
// as context.DeadlineExceeded, never as a blocked caller.
type Session interface {
	Connect(ctx context.Context) error
	Subscribe(account string) error
	RegisterHandler(h Handler)

	QueryFills(ctx context.Context, account string) ([]RawFill, error)
	QueryOrders(ctx context.Context, account string) ([]OrderSnapshot, error)

	ListInstruments(ctx context.Context, sectors []string) ([]Instrument, error)
	InstrumentDetail(ctx context.Context, code string) (Instrument, error)

	// FetchBars downloads daily bars for codes starting at since (YYYYMMDD).
	FetchBars(ctx context.Context, codes []string, since string) (map[string][]Bar, error)

	Close() error
}
