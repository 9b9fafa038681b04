// internal/model/signal.go
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeType is the side of a trade signal.
type TradeType string

const (
	Buy  TradeType = "BUY"
	Sell TradeType = "SELL"
)

// ParseTradeType accepts BUY or SELL in any case.
func ParseTradeType(s string) (TradeType, error) {
	switch TradeType(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown trade type %q", s)
	}
}

// SignalEvent is a single trade signal received from the stream.
// Values are immutable once built; map accessors return copies.
type SignalEvent struct {
	Timestamp  time.Time
	Price      decimal.Decimal
	TradeType  TradeType
	Profit     decimal.Decimal
	indicators map[string]json.RawMessage
	marker     json.RawMessage
}

// NewSignalEvent copies indicators and marker into a fresh event.
func NewSignalEvent(ts time.Time, price decimal.Decimal, side TradeType, profit decimal.Decimal,
	indicators map[string]json.RawMessage, marker json.RawMessage) SignalEvent {
	return SignalEvent{
		Timestamp:  ts,
		Price:      price,
		TradeType:  side,
		Profit:     profit,
		indicators: cloneIndicators(indicators),
		marker:     cloneRaw(marker),
	}
}

// Indicators returns a copy of the indicator snapshot.
func (e SignalEvent) Indicators() map[string]json.RawMessage {
	return cloneIndicators(e.indicators)
}

// Marker returns a copy of the chart marker, nil when absent.
func (e SignalEvent) Marker() json.RawMessage { return cloneRaw(e.marker) }

// HasMarker reports whether the event carries a chart marker.
func (e SignalEvent) HasMarker() bool { return len(e.marker) > 0 }

type signalJSON struct {
	Timestamp  time.Time                  `json:"timestamp"`
	Price      json.Number                `json:"price"`
	TradeType  TradeType                  `json:"trade_type"`
	Profit     json.Number                `json:"profit"`
	Indicators map[string]json.RawMessage `json:"indicators,omitempty"`
	Marker     json.RawMessage            `json:"marker,omitempty"`
}

// MarshalJSON renders the event for the HTTP API and Kafka export.
func (e SignalEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(signalJSON{
		Timestamp:  e.Timestamp.UTC(),
		Price:      json.Number(e.Price.String()),
		TradeType:  e.TradeType,
		Profit:     json.Number(e.Profit.String()),
		Indicators: e.indicators,
		Marker:     e.marker,
	})
}

func cloneIndicators(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = cloneRaw(v)
	}
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(json.RawMessage, len(in))
	copy(out, in)
	return out
}
