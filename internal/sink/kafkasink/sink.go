// internal/sink/kafkasink/sink.go
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/selinkarabicakkk/trading-bot/internal/metrics"
	"github.com/selinkarabicakkk/trading-bot/internal/model"
	"github.com/selinkarabicakkk/trading-bot/internal/session"
	"github.com/selinkarabicakkk/trading-bot/internal/stats"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

const sinkName = "kafka"

var tracer = otel.Tracer("live-trader/sink/kafkasink")

// Publisher is the subset of pkg/kafka.Producer the sink needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Config controls topics and buffering.
type Config struct {
	TradesTopic  string        `mapstructure:"trades_topic"`
	StatsTopic   string        `mapstructure:"stats_topic"`
	BufferSize   int           `mapstructure:"buffer_size"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

func (c *Config) applyDefaults() {
	if c.TradesTopic == "" {
		c.TradesTopic = "live-trader.trades"
	}
	if c.StatsTopic == "" {
		c.StatsTopic = "live-trader.stats"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 5 * time.Second
	}
}

type record struct {
	topic string
	key   []byte
	value []byte
}

type tradeMessage struct {
	SessionID string            `json:"session_id"`
	Symbol    string            `json:"symbol"`
	Trade     model.SignalEvent `json:"trade"`
}

type statsMessage struct {
	SessionID string      `json:"session_id"`
	Symbol    string      `json:"symbol"`
	Stats     stats.Stats `json:"stats"`
	At        time.Time   `json:"at"`
}

// Sink exports trades and stats to Kafka. Observer callbacks only enqueue;
// Run performs the publishing.
type Sink struct {
	session.NopObserver

	cfg Config
	pub Publisher
	log *logger.Logger
	ch  chan record

	mu        sync.Mutex
	sessionID string
	symbol    string

	dropped atomic.Uint64
}

// New builds a Sink in front of pub.
func New(cfg Config, pub Publisher, log *logger.Logger) *Sink {
	cfg.applyDefaults()
	return &Sink{
		cfg: cfg,
		pub: pub,
		log: log.Named("kafka-sink"),
		ch:  make(chan record, cfg.BufferSize),
	}
}

func (s *Sink) OnSessionStarted(sessionID string, sub model.SubscriptionConfig) {
	s.mu.Lock()
	s.sessionID, s.symbol = sessionID, sub.Symbol
	s.mu.Unlock()
}

func (s *Sink) OnTrade(ev model.SignalEvent) {
	id, sym := s.identity()
	s.enqueue(s.cfg.TradesTopic, sym, tradeMessage{SessionID: id, Symbol: sym, Trade: ev})
}

func (s *Sink) OnStats(st stats.Stats) {
	id, sym := s.identity()
	s.enqueue(s.cfg.StatsTopic, sym, statsMessage{SessionID: id, Symbol: sym, Stats: st, At: time.Now().UTC()})
}

// Dropped reports how many records were discarded on a full buffer.
func (s *Sink) Dropped() uint64 { return s.dropped.Load() }

// Run publishes buffered records until ctx is cancelled, then drains what
// is left within DrainTimeout.
func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case r := <-s.ch:
			s.publish(ctx, r)
		}
	}
}

func (s *Sink) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
	defer cancel()
	for {
		select {
		case r := <-s.ch:
			s.publish(ctx, r)
		default:
			return
		}
		if ctx.Err() != nil {
			s.log.Warn("drain timed out", zap.Int("remaining", len(s.ch)))
			return
		}
	}
}

func (s *Sink) publish(ctx context.Context, r record) {
	ctx, span := tracer.Start(ctx, "KafkaSink.Publish",
		trace.WithAttributes(
			attribute.String("topic", r.topic),
			attribute.String("symbol", string(r.key)),
		),
	)
	defer span.End()

	if err := s.pub.Publish(ctx, r.topic, r.key, r.value); err != nil {
		span.RecordError(err)
		metrics.IncSinkError(sinkName)
		s.log.WithContext(ctx).Warn("publish failed", zap.String("topic", r.topic), zap.Error(err))
	}
}

func (s *Sink) enqueue(topic, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode failed", zap.String("topic", topic), zap.Error(fmt.Errorf("kafkasink: %w", err)))
		return
	}
	select {
	case s.ch <- record{topic: topic, key: []byte(key), value: b}:
	default:
		s.dropped.Add(1)
		metrics.IncSinkDrop(sinkName)
		s.log.Warn("buffer full, dropping record", zap.String("topic", topic))
	}
}

func (s *Sink) identity() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.symbol
}
