// internal/sink/redissink/sink.go
package redissink

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/selinkarabicakkk/trading-bot/internal/metrics"
	"github.com/selinkarabicakkk/trading-bot/internal/model"
	"github.com/selinkarabicakkk/trading-bot/internal/session"
	"github.com/selinkarabicakkk/trading-bot/internal/stats"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

const (
	sinkName  = "redis"
	keyPrefix = "live-trader:stats:"
)

// Store is the subset of pkg/redis.Storage the sink writes through.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
}

// Key returns the cache key holding the latest stats for symbol.
func Key(symbol string) string { return keyPrefix + symbol }

type snapshot struct {
	symbol string
	stats  stats.Stats
}

// Sink keeps the most recent stats per symbol in Redis. Only the newest
// pending snapshot is written; older ones are overwritten before Run sees them.
type Sink struct {
	session.NopObserver

	store Store
	log   *logger.Logger
	ch    chan snapshot

	mu     sync.Mutex
	symbol string
}

func New(store Store, log *logger.Logger) *Sink {
	return &Sink{store: store, log: log.Named("redis-sink"), ch: make(chan snapshot, 1)}
}

func (s *Sink) OnSessionStarted(_ string, sub model.SubscriptionConfig) {
	s.mu.Lock()
	s.symbol = sub.Symbol
	s.mu.Unlock()
}

func (s *Sink) OnStats(st stats.Stats) {
	s.mu.Lock()
	snap := snapshot{symbol: s.symbol, stats: st}
	s.mu.Unlock()

	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
			metrics.IncSinkDrop(sinkName)
		default:
		}
	}
}

// Run writes snapshots until ctx is cancelled. A pending snapshot is flushed
// on the way out.
func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			select {
			case snap := <-s.ch:
				s.write(context.WithoutCancel(ctx), snap)
			default:
			}
			return nil
		case snap := <-s.ch:
			s.write(ctx, snap)
		}
	}
}

func (s *Sink) write(ctx context.Context, snap snapshot) {
	b, err := json.Marshal(snap.stats)
	if err != nil {
		s.log.Error("encode stats", zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, Key(snap.symbol), b); err != nil {
		metrics.IncSinkError(sinkName)
		s.log.Warn("store stats failed", zap.String("symbol", snap.symbol), zap.Error(err))
	}
}
