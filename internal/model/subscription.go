// internal/model/subscription.go
package model

import (
	"fmt"
	"math"
	"strings"
)

// Indicator is one technical indicator requested in a subscription.
type Indicator struct {
	Type   string             `json:"type" mapstructure:"type"`
	Params map[string]float64 `json:"params" mapstructure:"params"`
}

// SubscriptionConfig is sent as the first frame of every connection.
type SubscriptionConfig struct {
	Symbol     string      `json:"symbol" mapstructure:"symbol"`
	Indicators []Indicator `json:"indicators" mapstructure:"indicators"`
}

// ConfigError describes an invalid SubscriptionConfig field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("subscription config: %s: %s", e.Field, e.Reason)
}

// Validate reports the first problem found as a *ConfigError.
func (c SubscriptionConfig) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return &ConfigError{Field: "symbol", Reason: "must not be empty"}
	}
	if len(c.Indicators) == 0 {
		return &ConfigError{Field: "indicators", Reason: "at least one indicator is required"}
	}
	for i, ind := range c.Indicators {
		if strings.TrimSpace(ind.Type) == "" {
			return &ConfigError{Field: fmt.Sprintf("indicators[%d].type", i), Reason: "must not be empty"}
		}
		for k, v := range ind.Params {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &ConfigError{Field: fmt.Sprintf("indicators[%d].params.%s", i, k), Reason: "must be a finite number"}
			}
		}
	}
	return nil
}

// Clone returns a deep copy so later edits by the caller are not observed.
func (c SubscriptionConfig) Clone() SubscriptionConfig {
	out := SubscriptionConfig{Symbol: c.Symbol}
	if c.Indicators != nil {
		out.Indicators = make([]Indicator, len(c.Indicators))
		for i, ind := range c.Indicators {
			out.Indicators[i] = Indicator{Type: ind.Type}
			if ind.Params != nil {
				out.Indicators[i].Params = make(map[string]float64, len(ind.Params))
				for k, v := range ind.Params {
					out.Indicators[i].Params[k] = v
				}
			}
		}
	}
	return out
}
