package broker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"qledger/internal/logger"
)

// BridgeSession talks to the terminal bridge over a local unix socket using
// newline-delimited JSON. Requests carry a correlation id; anything without
// one is an async push event and goes to the registered handler.
type BridgeSession struct {
	socketPath string

	mu        sync.Mutex
	conn      net.Conn
	pending   map[string]chan bridgeReply
	handler   Handler
	connected bool
	closed    bool
}

type bridgeRequest struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

type bridgeReply struct {
	result gjson.Result
	err    error
}

func NewBridgeSession(socketPath string) *BridgeSession {
	return &BridgeSession{
		socketPath: socketPath,
		pending:    make(map[string]chan bridgeReply),
	}
}

// Connect dials the bridge socket if needed and pings it. Calling it while
// already connected only runs the ping, which is what makes it usable as a
// liveness probe.
func (s *BridgeSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("bridge session closed")
	}
	if s.conn == nil {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", s.socketPath)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("dial terminal bridge: %w", err)
		}
		s.conn = conn
		go s.readLoop(conn)
	}
	s.mu.Unlock()

	if _, err := s.call(ctx, "ping", nil); err != nil {
		s.dropConn()
		return err
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *BridgeSession) Subscribe(account string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.call(ctx, "subscribe", map[string]any{"account": account})
	return err
}

func (s *BridgeSession) RegisterHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *BridgeSession) QueryFills(ctx context.Context, account string) ([]RawFill, error) {
	res, err := s.call(ctx, "query_fills", map[string]any{"account": account})
	if err != nil {
		return nil, err
	}
	var fills []RawFill
	for _, item := range res.Array() {
		fill, err := ParseFill([]byte(item.Raw))
		if err != nil {
			logger.Warnf("bridge: dropping malformed fill: %v", err)
			continue
		}
		fills = append(fills, fill)
	}
	return fills, nil
}

func (s *BridgeSession) QueryOrders(ctx context.Context, account string) ([]OrderSnapshot, error) {
	res, err := s.call(ctx, "query_orders", map[string]any{"account": account})
	if err != nil {
		return nil, err
	}
	var orders []OrderSnapshot
	for _, item := range res.Array() {
		snap, err := ParseOrder([]byte(item.Raw))
		if err != nil {
			logger.Warnf("bridge: dropping malformed order: %v", err)
			continue
		}
		orders = append(orders, snap)
	}
	return orders, nil
}

func (s *BridgeSession) ListInstruments(ctx context.Context, sectors []string) ([]Instrument, error) {
	res, err := s.call(ctx, "list_instruments", map[string]any{"sectors": sectors})
	if err != nil {
		return nil, err
	}
	var insts []Instrument
	for _, item := range res.Array() {
		code := item.Get("code").String()
		if code == "" {
			continue
		}
		insts = append(insts, Instrument{Code: code, Name: item.Get("name").String()})
	}
	return insts, nil
}

func (s *BridgeSession) InstrumentDetail(ctx context.Context, code string) (Instrument, error) {
	res, err := s.call(ctx, "instrument_detail", map[string]any{"code": code})
	if err != nil {
		return Instrument{}, err
	}
	name := res.Get("name").String()
	if name == "" {
		return Instrument{}, fmt.Errorf("instrument %s: no detail", code)
	}
	return Instrument{Code: code, Name: name}, nil
}

func (s *BridgeSession) FetchBars(ctx context.Context, codes []string, since string) (map[string][]Bar, error) {
	res, err := s.call(ctx, "fetch_bars", map[string]any{
		"codes":  codes,
		"since":  since,
		"period": "1d",
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Bar, len(codes))
	res.ForEach(func(key, rows gjson.Result) bool {
		var bars []Bar
		for _, row := range rows.Array() {
			bars = append(bars, Bar{
				Time:        row.Get("time").Int(),
				Open:        row.Get("open").Float(),
				High:        row.Get("high").Float(),
				Low:         row.Get("low").Float(),
				Close:       row.Get("close").Float(),
				Volume:      row.Get("volume").Int(),
				Amount:      row.Get("amount").Float(),
				PreClose:    row.Get("preClose").Float(),
				SuspendFlag: int(row.Get("suspendFlag").Int()),
			})
		}
		out[key.String()] = bars
		return true
	})
	return out, nil
}

func (s *BridgeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// call sends one request and waits for its correlated reply or ctx expiry.
func (s *BridgeSession) call(ctx context.Context, method string, params map[string]any) (gjson.Result, error) {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return gjson.Result{}, ErrNotConnected
	}
	id := uuid.NewString()
	ch := make(chan bridgeReply, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	line, err := json.Marshal(bridgeRequest{ID: id, Method: method, Params: params})
	if err != nil {
		return gjson.Result{}, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		s.dropConn()
		return gjson.Result{}, fmt.Errorf("bridge %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	case reply := <-ch:
		if reply.err != nil {
			return gjson.Result{}, fmt.Errorf("bridge %s: %w", method, reply.err)
		}
		return reply.result, nil
	}
}

// readLoop owns the read side of one connection. It routes replies by id and
// forwards id-less event frames to the handler. On any read error the
// connection is dropped and the handler told, leaving reconnection to the
// next Connect.
func (s *BridgeSession) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !gjson.ValidBytes(line) {
			logger.Warnf("bridge: skipping non-json frame (%d bytes)", len(line))
			continue
		}
		frame := gjson.ParseBytes(line)
		if id := frame.Get("id").String(); id != "" {
			s.dispatchReply(id, frame)
			continue
		}
		s.dispatchEvent(frame, line)
	}
	if err := scanner.Err(); err != nil {
		logger.Warnf("bridge: read loop ended: %v", err)
	}
	s.dropConn()

	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.OnDisconnected()
	}
}

func (s *BridgeSession) dispatchReply(id string, frame gjson.Result) {
	s.mu.Lock()
	ch := s.pending[id]
	s.mu.Unlock()
	if ch == nil {
		return
	}
	if e := frame.Get("error"); e.Exists() && e.String() != "" {
		ch <- bridgeReply{err: fmt.Errorf("%s", e.String())}
		return
	}
	ch <- bridgeReply{result: frame.Get("result")}
}

func (s *BridgeSession) dispatchEvent(frame gjson.Result, line []byte) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return
	}
	data := frame.Get("data")
	switch frame.Get("event").String() {
	case "fill":
		fill, err := ParseFill([]byte(data.Raw))
		if err != nil {
			logger.Warnf("bridge: bad fill event: %v", err)
			return
		}
		h.OnFill(fill)
	case "order":
		snap, err := ParseOrder([]byte(data.Raw))
		if err != nil {
			logger.Warnf("bridge: bad order event: %v", err)
			return
		}
		h.OnOrderUpdate(snap)
	case "disconnected":
		h.OnDisconnected()
	default:
		logger.Debugf("bridge: ignoring event frame: %s", line)
	}
}

// dropConn closes the transport and fails all in-flight calls. State goes
// back to not-connected so the monitor's next probe redials.
func (s *BridgeSession) dropConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	waiting := s.pending
	s.pending = make(map[string]chan bridgeReply)
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	for _, ch := range waiting {
		ch <- bridgeReply{err: ErrNotConnected}
	}
}
