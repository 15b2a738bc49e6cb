package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"qledger/internal/logger"
)

// SimSession is an in-process stand-in for the vendor terminal. It serves
// seeded fills/orders/instruments/bars and lets callers script connect
// failures, which is enough to exercise the full reconcile and recovery
// paths without a terminal install.
type SimSession struct {
	mu sync.Mutex

	id        string
	connected bool
	handler   Handler

	failNextConnects int

	fills       []RawFill
	orders      []OrderSnapshot
	instruments map[string]Instrument
	bars        map[string][]Bar
}

func NewSimSession() *SimSession {
	return &SimSession{
		id:          uuid.NewString(),
		instruments: make(map[string]Instrument),
		bars:        make(map[string][]Bar),
	}
}

func (s *SimSession) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextConnects > 0 {
		s.failNextConnects--
		s.connected = false
		return fmt.Errorf("sim session %s: connect refused", s.id)
	}
	if !s.connected {
		logger.Debugf("sim session %s connected", s.id)
	}
	s.connected = true
	return nil
}

func (s *SimSession) Subscribe(account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	return nil
}

func (s *SimSession) RegisterHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *SimSession) QueryFills(ctx context.Context, account string) ([]RawFill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	out := make([]RawFill, len(s.fills))
	copy(out, s.fills)
	return out, nil
}

func (s *SimSession) QueryOrders(ctx context.Context, account string) ([]OrderSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	out := make([]OrderSnapshot, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

func (s *SimSession) ListInstruments(ctx context.Context, sectors []string) ([]Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *SimSession) InstrumentDetail(ctx context.Context, code string) (Instrument, error) {
	if err := ctx.Err(); err != nil {
		return Instrument{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[code]
	if !ok {
		return Instrument{}, fmt.Errorf("instrument %s unknown", code)
	}
	return inst, nil
}

func (s *SimSession) FetchBars(ctx context.Context, codes []string, since string) (map[string][]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]Bar, len(codes))
	for _, code := range codes {
		if bars, ok := s.bars[code]; ok {
			out[code] = append([]Bar(nil), bars...)
		}
	}
	return out, nil
}

func (s *SimSession) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

// --- seeding & scripting helpers -----------------------------------------

// FailNextConnects makes the next n Connect calls fail, simulating a dropped
// terminal link.
func (s *SimSession) FailNextConnects(n int) {
	s.mu.Lock()
	s.failNextConnects = n
	s.connected = false
	s.mu.Unlock()
}

func (s *SimSession) SeedFills(fills ...RawFill) {
	s.mu.Lock()
	s.fills = append(s.fills, fills...)
	s.mu.Unlock()
}

func (s *SimSession) SeedOrders(orders ...OrderSnapshot) {
	s.mu.Lock()
	s.orders = append(s.orders, orders...)
	s.mu.Unlock()
}

func (s *SimSession) SeedInstruments(insts ...Instrument) {
	s.mu.Lock()
	for _, inst := range insts {
		s.instruments[inst.Code] = inst
	}
	s.mu.Unlock()
}

func (s *SimSession) SeedBars(code string, bars ...Bar) {
	s.mu.Lock()
	s.bars[code] = append(s.bars[code], bars...)
	s.mu.Unlock()
}

// PushFill delivers a fill through the registered handler, as the live
// terminal would.
func (s *SimSession) PushFill(fill RawFill) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.OnFill(fill)
	}
}

func (s *SimSession) PushOrder(order OrderSnapshot) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.OnOrderUpdate(order)
	}
}

var _ Session = (*SimSession)(nil)
