// pkg/backoff/backoff.go
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

const defaultMaxElapsed = 30 * time.Second

// Retry metrics are labelled by operation name, e.g. "kafka.publish".
var retryMetrics = struct {
	Retries *prometheus.CounterVec
	GiveUps *prometheus.CounterVec
	Delays  *prometheus.HistogramVec
}{
	Retries: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "live_trader", Subsystem: "retry", Name: "attempts_total",
		Help: "Retried attempts of an outbound operation",
	}, []string{"op"}),
	GiveUps: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "live_trader", Subsystem: "retry", Name: "give_ups_total",
		Help: "Operations abandoned after exhausting their retry budget",
	}, []string{"op"}),
	Delays: promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "live_trader", Subsystem: "retry", Name: "delay_seconds",
		Help:    "Wait before each retry",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"}),
}

// Config is a Policy plus the knobs that only make sense for retrying a
// single operation: jitter and a total time budget.
type Config struct {
	Policy `mapstructure:",squash"`

	// Jitter spreads each delay by ±Jitter*delay. 0 keeps delays exact.
	Jitter float64 `mapstructure:"jitter"`

	// MaxElapsedTime bounds all attempts together (default 30s).
	MaxElapsedTime time.Duration `mapstructure:"max_elapsed_time"`

	// PerAttemptTimeout bounds one call of the operation. Zero disables it.
	PerAttemptTimeout time.Duration `mapstructure:"per_attempt_timeout"`
}

func (c *Config) applyDefaults() {
	c.Policy.ApplyDefaults()
	if c.MaxElapsedTime <= 0 {
		c.MaxElapsedTime = defaultMaxElapsed
	}
}

func (c Config) validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("backoff: jitter must be within [0, 1]")
	}
	return nil
}

// GiveUpError is returned by Execute when op kept failing until its budget
// or its context ran out.
type GiveUpError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *GiveUpError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *GiveUpError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. Execute returns it unwrapped.
func Permanent(err error) error { return backoff.Permanent(err) }

// Execute runs fn until it succeeds, fails permanently, ctx ends, or
// cfg.MaxElapsedTime passes. op names the operation in logs and metrics.
func Execute(ctx context.Context, op string, cfg Config, log *logger.Logger, fn func(ctx context.Context) error) error {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	attempts := 0
	permanent := false
	attempt := func() error {
		attempts++
		actx := ctx
		if cfg.PerAttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, cfg.PerAttemptTimeout)
			defer cancel()
		}
		err := fn(actx)
		var perm *backoff.PermanentError
		permanent = errors.As(err, &perm)
		return err
	}
	notify := func(err error, delay time.Duration) {
		retryMetrics.Retries.WithLabelValues(op).Inc()
		retryMetrics.Delays.WithLabelValues(op).Observe(delay.Seconds())
		log.Warn("retrying",
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	bo := backoff.WithContext(newExponential(cfg.Policy, cfg.Jitter, cfg.MaxElapsedTime), ctx)
	err := backoff.RetryNotify(attempt, bo, notify)
	if err == nil || permanent {
		return err
	}

	retryMetrics.GiveUps.WithLabelValues(op).Inc()
	log.Error("giving up", zap.String("op", op), zap.Int("attempts", attempts), zap.Error(err))
	return &GiveUpError{Op: op, Attempts: attempts, Err: err}
}
