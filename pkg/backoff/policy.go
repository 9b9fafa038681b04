// pkg/backoff/policy.go
package backoff

import (
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a jitter-free exponential reconnect schedule:
// delay(n) = min(InitialInterval * Multiplier^n, MaxInterval).
type Policy struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// DefaultPolicy is 1s, 2s, 4s, ... capped at 30s.
func DefaultPolicy() Policy {
	return Policy{InitialInterval: time.Second, MaxInterval: 30 * time.Second, Multiplier: 2}
}

// ApplyDefaults fills zero fields from DefaultPolicy.
func (p *Policy) ApplyDefaults() {
	d := DefaultPolicy()
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
}

// Validate checks the policy after defaults were applied.
func (p Policy) Validate() error {
	switch {
	case p.InitialInterval <= 0:
		return fmt.Errorf("backoff: initial_interval must be > 0")
	case p.MaxInterval < p.InitialInterval:
		return fmt.Errorf("backoff: max_interval must be ≥ initial_interval")
	case p.Multiplier < 1:
		return fmt.Errorf("backoff: multiplier must be ≥ 1")
	default:
		return nil
	}
}

// Delay returns the wait before reconnect attempt n (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt))
	if math.IsInf(d, 0) || d >= float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

// Schedule yields Policy delays one at a time.
// It is not safe for concurrent use; callers serialize access.
type Schedule struct {
	bo *backoff.ExponentialBackOff
}

// NewSchedule builds a Schedule positioned at attempt 0.
func (p Policy) NewSchedule() *Schedule {
	p.ApplyDefaults()
	return &Schedule{bo: newExponential(p, 0, 0)}
}

// newExponential backs both Execute and Schedule. maxElapsed 0 never stops.
func newExponential(p Policy, jitter float64, maxElapsed time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = jitter
	bo.MaxElapsedTime = maxElapsed
	bo.Reset()
	return bo
}

// Next returns the delay for the current attempt and advances.
func (s *Schedule) Next() time.Duration {
	return s.bo.NextBackOff()
}

// Reset rewinds the schedule to attempt 0.
func (s *Schedule) Reset() {
	s.bo.Reset()
}
