// internal/session/fakes_test.go
package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/selinkarabicakkk/trading-bot/internal/model"
	"github.com/selinkarabicakkk/trading-bot/internal/session"
	"github.com/selinkarabicakkk/trading-bot/internal/stats"
	"github.com/selinkarabicakkk/trading-bot/internal/transport"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

// -----------------------------------------------------------------------------
// virtual clock
// -----------------------------------------------------------------------------

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Duration
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now + d, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves virtual time forward and runs due callbacks in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Pending lists the durations of timers that have neither fired nor stopped.
func (c *fakeClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// scripted connection
// -----------------------------------------------------------------------------

type readResult struct {
	data []byte
	err  error
}

type fakeConn struct {
	inbox     chan readResult
	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	writes      [][]byte
	writeErr    error
	writeCalls  int
	normalClose int
	noAck       bool
	// blockWrite makes WriteJSON wait for its context.
	blockWrite bool
	// holdClose, when set, delays CloseNormal until it is closed.
	holdClose chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan readResult, 64), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case r := <-c.inbox:
		return r.data, r.err
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) WriteJSON(ctx context.Context, v any) error {
	c.mu.Lock()
	c.writeCalls++
	block := c.blockWrite
	c.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, b)
	return nil
}

func (c *fakeConn) CloseNormal(string) error {
	if c.holdClose != nil {
		<-c.holdClose
	}
	c.mu.Lock()
	c.normalClose++
	ack := !c.noAck
	c.mu.Unlock()
	if ack {
		c.inbox <- readResult{err: &transport.CloseError{Code: transport.CodeNormal}}
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(frame string) { c.inbox <- readResult{data: []byte(frame)} }

func (c *fakeConn) closeWith(code int) {
	c.inbox <- readResult{err: &transport.CloseError{Code: code}}
}

func (c *fakeConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	for i, w := range c.writes {
		out[i] = string(w)
	}
	return out
}

func (c *fakeConn) WriteCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeCalls
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// scripted dialer
// -----------------------------------------------------------------------------

type dialResult struct {
	conn *fakeConn
	err  error
	// late returns conn only after the dial context is cancelled.
	late bool
}

type fakeDialer struct {
	results chan dialResult

	mu    sync.Mutex
	dials int
	ctxs  []context.Context
}

func newFakeDialer() *fakeDialer { return &fakeDialer{results: make(chan dialResult, 32)} }

func (d *fakeDialer) push(conn *fakeConn, err error) { d.results <- dialResult{conn: conn, err: err} }

func (d *fakeDialer) Dial(ctx context.Context) (transport.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.ctxs = append(d.ctxs, ctx)
	d.mu.Unlock()

	select {
	case r := <-d.results:
		if r.late {
			<-ctx.Done()
		}
		if r.err != nil {
			return nil, r.err
		}
		return r.conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastCtx() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctxs[len(d.ctxs)-1]
}

// -----------------------------------------------------------------------------
// recording observer and chart
// -----------------------------------------------------------------------------

type recorder struct {
	mu       sync.Mutex
	states   []session.State
	trades   []model.SignalEvent
	stats    []stats.Stats
	errs     []string
	statuses []string
	attempts []int
	delays   []time.Duration
}

func (r *recorder) OnConnectionStateChanged(s session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) OnStats(s stats.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, s)
}

func (r *recorder) OnTrade(ev model.SignalEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, ev)
}

func (r *recorder) OnError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
}

func (r *recorder) OnStatus(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

func (r *recorder) OnReconnectScheduled(attempt int, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	r.delays = append(r.delays, delay)
}

func (r *recorder) count(f func(r *recorder) int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return f(r)
}

type fakeChart struct {
	mu      sync.Mutex
	markers []string
	resets  int
}

func (c *fakeChart) CreateMarker(m json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers = append(c.markers, string(m))
}

func (c *fakeChart) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	c.markers = nil
}

func (c *fakeChart) snapshot() ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.markers...), c.resets
}

// -----------------------------------------------------------------------------
// harness
// -----------------------------------------------------------------------------

type harness struct {
	m      *session.Manager
	clock  *fakeClock
	dialer *fakeDialer
	rec    *recorder
	chart  *fakeChart
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: &fakeClock{}, dialer: newFakeDialer(), rec: &recorder{}, chart: &fakeChart{}}
	h.m = session.NewManager(session.Config{}, h.dialer, logger.NewNop(),
		session.WithClock(h.clock),
		session.WithObserver(h.rec),
		session.WithChart(h.chart),
	)
	t.Cleanup(func() { _ = h.m.Stop() })
	return h
}

func (h *harness) waitState(t *testing.T, want session.State) {
	t.Helper()
	waitFor(t, func() bool { return h.m.State() == want }, "state "+want.String())
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func btcConfig() model.SubscriptionConfig {
	return model.SubscriptionConfig{
		Symbol:     "BTCUSDT",
		Indicators: []model.Indicator{{Type: "RSI", Params: map[string]float64{"period": 14}}},
	}
}
