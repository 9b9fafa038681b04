// internal/decoder/decoder.go
package decoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selinkarabicakkk/trading-bot/internal/model"
)

// Message is one decoded inbound frame. The concrete type is one of
// SignalMessage, StatusMessage, ErrorMessage or *DecodeError.
type Message interface {
	isMessage()
}

// SignalMessage carries a trade signal.
type SignalMessage struct {
	Event model.SignalEvent
}

// StatusMessage is an informational server notice.
type StatusMessage struct {
	Message string
}

// ErrorMessage is an error reported by the server.
type ErrorMessage struct {
	Message string
}

// DecodeError is returned for frames that cannot be interpreted.
type DecodeError struct {
	Raw    []byte
	Reason string
}

func (e *DecodeError) Error() string { return "decode frame: " + e.Reason }

func (SignalMessage) isMessage() {}
func (StatusMessage) isMessage() {}
func (ErrorMessage) isMessage()  {}
func (*DecodeError) isMessage()  {}

// Kind is a short label used for logs and metrics.
func Kind(m Message) string {
	switch m.(type) {
	case SignalMessage:
		return "signal"
	case StatusMessage:
		return "status"
	case ErrorMessage:
		return "error"
	default:
		return "invalid"
	}
}

// Decode turns a raw frame into a Message. It never panics and never
// returns nil.
func Decode(raw []byte) Message {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return invalid(raw, "frame is not a JSON object")
	}

	if v, ok := fields["error"]; ok && truthy(v) {
		return ErrorMessage{Message: text(v)}
	}

	if isString(fields["status"], "success") {
		var msg string
		if err := json.Unmarshal(fields["message"], &msg); err == nil && msg != "" {
			return StatusMessage{Message: msg}
		}
	}

	if sig, ok := fields["signal"]; ok {
		var n float64
		if err := json.Unmarshal(sig, &n); err == nil && n != 0 {
			ev, err := decodeSignal(fields)
			if err != nil {
				return invalid(raw, err.Error())
			}
			return SignalMessage{Event: ev}
		}
	}

	return invalid(raw, "unrecognized frame")
}

func decodeSignal(f map[string]json.RawMessage) (model.SignalEvent, error) {
	ts, err := parseTimestamp(f["timestamp"])
	if err != nil {
		return model.SignalEvent{}, fmt.Errorf("timestamp: %w", err)
	}

	price, err := parseDecimal(f["price"])
	if err != nil {
		return model.SignalEvent{}, fmt.Errorf("price: %w", err)
	}

	var side string
	if err := json.Unmarshal(f["trade_type"], &side); err != nil {
		return model.SignalEvent{}, fmt.Errorf("trade_type: must be a string")
	}
	tt, err := model.ParseTradeType(side)
	if err != nil {
		return model.SignalEvent{}, fmt.Errorf("trade_type: %w", err)
	}

	profit := decimal.Zero
	if !isNull(f["profit"]) {
		if profit, err = parseDecimal(f["profit"]); err != nil {
			return model.SignalEvent{}, fmt.Errorf("profit: %w", err)
		}
	}

	var indicators map[string]json.RawMessage
	if !isNull(f["indicators"]) {
		if err := json.Unmarshal(f["indicators"], &indicators); err != nil || indicators == nil {
			return model.SignalEvent{}, fmt.Errorf("indicators: must be an object")
		}
	}

	var marker json.RawMessage
	if !isNull(f["marker"]) {
		if !isObject(f["marker"]) {
			return model.SignalEvent{}, fmt.Errorf("marker: must be an object")
		}
		marker = f["marker"]
	}

	return model.NewSignalEvent(ts, price, tt, profit, indicators, marker), nil
}

// -----------------------------------------------------------------------------
// field helpers
// -----------------------------------------------------------------------------

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(v json.RawMessage) (time.Time, error) {
	if isNull(v) {
		return time.Time{}, fmt.Errorf("required")
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return fromMillis(string(n))
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return time.Time{}, fmt.Errorf("must be a number or string")
	}
	s = strings.TrimSpace(s)
	if t, err := fromMillis(s); err == nil {
		return t, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported format %q", s)
}

func fromMillis(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, fmt.Errorf("not a finite number: %q", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if ms < math.MinInt64 || ms >= math.MaxInt64 {
		return time.Time{}, fmt.Errorf("out of range: %q", s)
	}
	whole := math.Trunc(ms)
	frac := time.Duration((ms - whole) * float64(time.Millisecond))
	return time.UnixMilli(int64(whole)).Add(frac).UTC(), nil
}

func parseDecimal(v json.RawMessage) (decimal.Decimal, error) {
	if isNull(v) {
		return decimal.Zero, fmt.Errorf("required")
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.Zero, fmt.Errorf("not numeric: %q", s)
		}
		return d, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return decimal.Zero, fmt.Errorf("must be a number")
	}
	return decimal.NewFromString(string(n))
}

func truthy(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	switch string(v) {
	case "", "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(string(v), 64); err == nil {
		return f != 0
	}
	return true
}

func text(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(v))
}

func isString(v json.RawMessage, want string) bool {
	var s string
	return json.Unmarshal(v, &s) == nil && s == want
}

func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || string(v) == "null"
}

func isObject(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '{'
}

func invalid(raw []byte, reason string) *DecodeError {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &DecodeError{Raw: cp, Reason: reason}
}
