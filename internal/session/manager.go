// internal/session/manager.go
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/selinkarabicakkk/trading-bot/internal/decoder"
	"github.com/selinkarabicakkk/trading-bot/internal/metrics"
	"github.com/selinkarabicakkk/trading-bot/internal/model"
	"github.com/selinkarabicakkk/trading-bot/internal/stats"
	"github.com/selinkarabicakkk/trading-bot/internal/tradelog"
	"github.com/selinkarabicakkk/trading-bot/internal/transport"
	"github.com/selinkarabicakkk/trading-bot/pkg/backoff"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

// Config tunes the Manager.
type Config struct {
	Reconnect    backoff.Policy `mapstructure:"reconnect"`
	WriteTimeout time.Duration  `mapstructure:"write_timeout"`
	CloseTimeout time.Duration  `mapstructure:"close_timeout"`
}

func (c *Config) applyDefaults() {
	c.Reconnect.ApplyDefaults()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
}

// Option customises a Manager.
type Option func(*Manager)

// WithObserver adds an observer. May be passed more than once.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.obs = append(m.obs, o) }
}

// WithChart sets the chart marker sink.
func WithChart(c ChartSink) Option {
	return func(m *Manager) { m.chart = c }
}

// WithClock replaces the wall clock used for reconnect and close timers.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithTracer sets the tracer used for dial, subscribe and dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	SessionID string      `json:"session_id"`
	State     State       `json:"state"`
	Attempt   int         `json:"attempt"`
	Symbol    string      `json:"symbol"`
	Stats     stats.Stats `json:"stats"`
}

// Manager owns one streaming session: the connection state machine, the
// reconnect schedule, the trade log and the running stats.
//
// Every asynchronous callback (dial result, reconnect timer, close timer)
// carries the generation it was spawned for and is ignored once gen has
// moved on. Read-loop callbacks are bound to their connection instead.
type Manager struct {
	cfg    Config
	dialer transport.Dialer
	log    *logger.Logger
	obs    Observers
	chart  ChartSink
	clock  Clock
	tracer trace.Tracer
	trades *tradelog.Log

	mu         sync.Mutex
	state      State
	gen        uint64
	attempt    int
	schedule   *backoff.Schedule
	stats      stats.Stats
	sub        model.SubscriptionConfig
	sessionID  string
	slog       *logger.Logger
	conn       transport.Conn
	cancelDial context.CancelFunc
	cancelRead context.CancelFunc
	retryTimer Timer
	closeTimer Timer
	done       chan struct{}
}

// NewManager builds an Idle manager.
func NewManager(cfg Config, dialer transport.Dialer, log *logger.Logger, opts ...Option) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:      cfg,
		dialer:   dialer,
		log:      log.Named("session"),
		clock:    systemClock{},
		tracer:   otel.Tracer("live-trader/session"),
		trades:   tradelog.New(),
		schedule: cfg.Reconnect.NewSchedule(),
	}
	for _, o := range opts {
		o(m)
	}
	m.slog = m.log
	metrics.SetState(int(Idle))
	return m
}

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

// Start begins a new session for cfg. It is valid from Idle or Stopped.
// Connection failures are handled by reconnecting and are not returned.
func (m *Manager) Start(cfg model.SubscriptionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Idle && m.state != Stopped {
		return fmt.Errorf("%w: start while %s", ErrInvalidTransition, m.state)
	}

	m.trades.Reset()
	m.stats = stats.Stats{}
	m.attempt = 0
	m.schedule.Reset()
	m.sub = cfg.Clone()
	m.sessionID = uuid.NewString()
	m.slog = m.log.With(zap.String("session_id", m.sessionID), zap.String("symbol", m.sub.Symbol))
	m.done = make(chan struct{})
	if r, ok := m.chart.(chartResetter); ok {
		r.Reset()
	}

	m.slog.Info("session starting", zap.Int("indicators", len(m.sub.Indicators)))
	m.obs.OnSessionStarted(m.sessionID, m.sub)
	m.gen++
	m.connectLocked()
	return nil
}

// Stop ends the session. From Open it performs a close handshake and the
// state passes through Closing. Once Stop returns no reconnect will fire.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Idle, Stopped:
		return fmt.Errorf("%w: stop while %s", ErrInvalidTransition, m.state)

	case Closing:
		return nil

	case Connecting, Reconnecting:
		m.gen++
		m.finishLocked("stopped by user")
		return nil

	case Open:
		m.gen++
		gen := m.gen
		conn := m.conn
		m.setStateLocked(Closing)
		m.closeTimer = m.clock.AfterFunc(m.cfg.CloseTimeout, func() { m.onCloseTimeout(gen, conn) })

		// The handshake writes to the network; observers and the read loop
		// must not wait on it.
		m.mu.Unlock()
		err := conn.CloseNormal("client stop")
		m.mu.Lock()

		if err != nil && gen == m.gen && m.state == Closing && m.conn == conn {
			m.slog.Warn("close handshake failed, dropping connection", zap.Error(err))
			m.dropConnLocked()
			m.finishLocked("close handshake failed")
		}
		return nil
	}
	return nil
}

// Wait blocks until the current session reaches Stopped or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Stats() stats.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Trades returns every trade of the current session, oldest first.
func (m *Manager) Trades() []model.SignalEvent { return m.trades.All() }

// Latest returns the last n trades, oldest first.
func (m *Manager) Latest(n int) []model.SignalEvent { return m.trades.Latest(n) }

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		SessionID: m.sessionID,
		State:     m.state,
		Attempt:   m.attempt,
		Symbol:    m.sub.Symbol,
		Stats:     m.stats,
	}
}

// -----------------------------------------------------------------------------
// Connection lifecycle (all *Locked methods require m.mu)
// -----------------------------------------------------------------------------

func (m *Manager) connectLocked() {
	m.setStateLocked(Connecting)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	go m.dial(ctx, cancel, m.gen)
}

// dial runs without m.mu. ctx stays cancellable through m.cancelDial until
// the subscription is written, so Stop can abort either step.
func (m *Manager) dial(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()

	dctx, span := m.tracer.Start(ctx, "session.dial")
	conn, err := m.dialer.Dial(dctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
	}
	span.End()

	m.mu.Lock()
	if gen != m.gen || m.state != Connecting {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.cancelDial = nil
		metrics.IncDialError()
		m.slog.Warn("open failed", zap.Int("attempt", m.attempt), zap.Error(err))
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}
	sub := m.sub
	m.mu.Unlock()

	err = m.subscribe(ctx, conn, sub)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != Connecting {
		_ = conn.Close()
		return
	}
	m.cancelDial = nil

	if err != nil {
		metrics.IncDialError()
		m.slog.Warn("subscribe failed", zap.Error(err))
		_ = conn.Close()
		m.scheduleReconnectLocked()
		return
	}

	m.conn = conn
	m.attempt = 0
	m.schedule.Reset()
	m.setStateLocked(Open)
	m.slog.Info("session open")

	readCtx, cancelRead := context.WithCancel(context.Background())
	m.cancelRead = cancelRead
	go m.readLoop(readCtx, conn)
}

func (m *Manager) subscribe(ctx context.Context, conn transport.Conn, sub model.SubscriptionConfig) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.WriteTimeout)
	defer cancel()
	ctx, span := m.tracer.Start(ctx, "session.subscribe",
		trace.WithAttributes(attribute.String("symbol", sub.Symbol)))
	defer span.End()

	if err := conn.WriteJSON(ctx, sub); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		return fmt.Errorf("send subscription: %w", err)
	}
	return nil
}

func (m *Manager) readLoop(ctx context.Context, conn transport.Conn) {
	for {
		data, err := conn.ReadMessage(ctx)
		if err != nil {
			m.onClosure(conn, err)
			return
		}
		if !m.dispatch(conn, data) {
			return
		}
	}
}

// dispatch routes one frame. It reports false once conn is no longer the
// session's connection.
func (m *Manager) dispatch(conn transport.Conn, data []byte) bool {
	msg := decoder.Decode(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != conn {
		_ = conn.Close()
		return false
	}
	if m.state != Open {
		// Closing: frames before the close ack are discarded.
		return true
	}

	metrics.IncFrame(decoder.Kind(msg))
	switch v := msg.(type) {
	case decoder.SignalMessage:
		_, span := m.tracer.Start(context.Background(), "session.dispatch",
			trace.WithAttributes(attribute.String("trade_type", string(v.Event.TradeType))))
		ev := v.Event
		m.trades.Append(ev)
		m.stats = stats.Apply(m.stats, ev)
		if ev.HasMarker() && m.chart != nil {
			m.chart.CreateMarker(ev.Marker())
		}
		metrics.IncTrade(string(ev.TradeType))
		m.obs.OnTrade(ev)
		m.obs.OnStats(m.stats)
		span.End()

	case decoder.StatusMessage:
		m.slog.Info("server status", zap.String("message", v.Message))
		m.obs.OnStatus(v.Message)

	case decoder.ErrorMessage:
		m.slog.Warn("server error", zap.String("message", v.Message))
		m.obs.OnError(v.Message)

	case *decoder.DecodeError:
		m.slog.Warn("invalid frame", zap.String("reason", v.Reason), zap.ByteString("raw", v.Raw))
		m.obs.OnError(v.Error())
	}
	return true
}

func (m *Manager) onClosure(conn transport.Conn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != conn {
		_ = conn.Close()
		return
	}
	m.dropConnLocked()

	code := transport.ClosureCode(err)
	if m.state == Closing || code == transport.CodeNormal {
		m.finishLocked(fmt.Sprintf("closed with code %d", code))
		return
	}

	m.slog.Warn("connection lost", zap.Int("code", code), zap.Error(err))
	m.scheduleReconnectLocked()
}

func (m *Manager) scheduleReconnectLocked() {
	m.gen++
	gen := m.gen
	m.attempt++
	delay := m.schedule.Next()

	m.setStateLocked(Reconnecting)
	metrics.IncReconnect()
	m.slog.Info("reconnect scheduled", zap.Int("attempt", m.attempt), zap.Duration("delay", delay))
	m.obs.OnReconnectScheduled(m.attempt, delay)
	m.retryTimer = m.clock.AfterFunc(delay, func() { m.onRetryTimer(gen) })
}

func (m *Manager) onRetryTimer(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != Reconnecting {
		return
	}
	m.retryTimer = nil
	m.connectLocked()
}

func (m *Manager) onCloseTimeout(gen uint64, conn transport.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != Closing || m.conn != conn {
		return
	}
	m.slog.Warn("close ack timed out, dropping connection", zap.Duration("timeout", m.cfg.CloseTimeout))
	m.dropConnLocked()
	m.finishLocked("close timeout")
}

func (m *Manager) dropConnLocked() {
	if m.cancelRead != nil {
		m.cancelRead()
		m.cancelRead = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) finishLocked(reason string) {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.closeTimer != nil {
		m.closeTimer.Stop()
		m.closeTimer = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.dropConnLocked()
	m.setStateLocked(Stopped)
	m.slog.Info("session stopped", zap.String("reason", reason), zap.Int("trades", m.trades.Len()))
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.slog.Debug("state change", zap.Stringer("from", m.state), zap.Stringer("to", s))
	m.state = s
	metrics.SetState(int(s))
	m.obs.OnConnectionStateChanged(s)
}
