// internal/decoder/decoder_test.go
package decoder_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selinkarabicakkk/trading-bot/internal/decoder"
	"github.com/selinkarabicakkk/trading-bot/internal/model"
)

func TestDecode_Signal(t *testing.T) {
	raw := []byte(`{"signal":1,"timestamp":1700000000000,"price":42000.5,"trade_type":"buy",
		"profit":1.5,"indicators":{"rsi":28.1},"marker":{"position":"belowBar","shape":"arrowUp"},"extra":true}`)

	msg, ok := decoder.Decode(raw).(decoder.SignalMessage)
	if !ok {
		t.Fatalf("expected SignalMessage, got %#v", decoder.Decode(raw))
	}
	ev := msg.Event
	if !ev.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("timestamp = %v", ev.Timestamp)
	}
	if !ev.Price.Equal(decimal.RequireFromString("42000.5")) {
		t.Errorf("price = %s", ev.Price)
	}
	if ev.TradeType != model.Buy {
		t.Errorf("trade type = %s", ev.TradeType)
	}
	if !ev.Profit.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("profit = %s", ev.Profit)
	}
	if string(ev.Indicators()["rsi"]) != "28.1" {
		t.Errorf("indicators = %v", ev.Indicators())
	}
	if !ev.HasMarker() {
		t.Error("expected marker")
	}
}

func TestDecode_SignalFieldVariants(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		wantTS time.Time
	}{
		{"string millis", `{"signal":-1,"timestamp":"1700000000000","price":"10","trade_type":"SELL"}`, time.UnixMilli(1700000000000)},
		{"rfc3339", `{"signal":-1,"timestamp":"2024-01-02T03:04:05Z","price":10,"trade_type":"SELL"}`, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"sql layout", `{"signal":2,"timestamp":"2024-01-02 03:04:05","price":10,"trade_type":"Sell"}`, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, ok := decoder.Decode([]byte(tc.raw)).(decoder.SignalMessage)
			if !ok {
				t.Fatalf("expected SignalMessage, got %#v", decoder.Decode([]byte(tc.raw)))
			}
			if !msg.Event.Timestamp.Equal(tc.wantTS) {
				t.Errorf("timestamp = %v; want %v", msg.Event.Timestamp, tc.wantTS)
			}
			if !msg.Event.Profit.IsZero() {
				t.Errorf("absent profit should be zero, got %s", msg.Event.Profit)
			}
			if msg.Event.HasMarker() {
				t.Error("absent marker should be nil")
			}
		})
	}
}

func TestDecode_StatusAndError(t *testing.T) {
	if m, ok := decoder.Decode([]byte(`{"status":"success","message":"subscribed"}`)).(decoder.StatusMessage); !ok || m.Message != "subscribed" {
		t.Errorf("status: got %#v", m)
	}
	if m, ok := decoder.Decode([]byte(`{"error":"bad symbol"}`)).(decoder.ErrorMessage); !ok || m.Message != "bad symbol" {
		t.Errorf("error: got %#v", m)
	}
	if m, ok := decoder.Decode([]byte(`{"error":{"code":7}}`)).(decoder.ErrorMessage); !ok || m.Message != `{"code":7}` {
		t.Errorf("object error: got %#v", m)
	}
	// error wins over a signal in the same frame
	if _, ok := decoder.Decode([]byte(`{"error":"x","signal":1}`)).(decoder.ErrorMessage); !ok {
		t.Error("error should take precedence over signal")
	}
}

func TestDecode_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":          `{{{`,
		"array":             `[1,2]`,
		"null":              `null`,
		"falsy error only":  `{"error":""}`,
		"zero signal":       `{"signal":0,"timestamp":1,"price":1,"trade_type":"BUY"}`,
		"status no message": `{"status":"success"}`,
		"missing timestamp": `{"signal":1,"price":1,"trade_type":"BUY"}`,
		"missing price":     `{"signal":1,"timestamp":1,"trade_type":"BUY"}`,
		"bad price":         `{"signal":1,"timestamp":1,"price":"abc","trade_type":"BUY"}`,
		"bad side":          `{"signal":1,"timestamp":1,"price":1,"trade_type":"HOLD"}`,
		"marker not object": `{"signal":1,"timestamp":1,"price":1,"trade_type":"BUY","marker":"x"}`,
		"bad indicators":    `{"signal":1,"timestamp":1,"price":1,"trade_type":"BUY","indicators":[1]}`,
		"bad timestamp":     `{"signal":1,"timestamp":"yesterday","price":1,"trade_type":"BUY"}`,
		"NaN timestamp":     `{"signal":1,"timestamp":"NaN","price":1,"trade_type":"BUY"}`,
		"Inf timestamp":     `{"signal":1,"timestamp":"-Inf","price":1,"trade_type":"BUY"}`,
		"huge timestamp":    `{"signal":1,"timestamp":"1e30","price":1,"trade_type":"BUY"}`,
		"huge number":       `{"signal":1,"timestamp":1e30,"price":1,"trade_type":"BUY"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			m := decoder.Decode([]byte(raw))
			de, ok := m.(*decoder.DecodeError)
			if !ok {
				t.Fatalf("expected *DecodeError, got %#v", m)
			}
			if string(de.Raw) != raw || de.Reason == "" {
				t.Errorf("unexpected error payload: %+v", de)
			}
			if decoder.Kind(m) != "invalid" {
				t.Errorf("Kind = %s", decoder.Kind(m))
			}
		})
	}
}

func TestKind(t *testing.T) {
	cases := map[string]decoder.Message{
		"signal": decoder.SignalMessage{},
		"status": decoder.StatusMessage{},
		"error":  decoder.ErrorMessage{},
	}
	for want, m := range cases {
		if got := decoder.Kind(m); got != want {
			t.Errorf("Kind(%T) = %s; want %s", m, got, want)
		}
	}
}
