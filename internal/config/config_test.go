// internal/config/config_test.go
package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/selinkarabicakkk/trading-bot/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "live-trader" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.Reconnect.InitialInterval != time.Second || cfg.Reconnect.MaxInterval != 30*time.Second || cfg.Reconnect.Multiplier != 2 {
		t.Errorf("Reconnect = %+v", cfg.Reconnect)
	}
	if cfg.Stream.CloseTimeout != 5*time.Second {
		t.Errorf("CloseTimeout = %v", cfg.Stream.CloseTimeout)
	}
	if cfg.Kafka.Enabled || cfg.Redis.Enabled || cfg.Subscription.Autostart {
		t.Errorf("optional features should default to off: %+v", cfg)
	}
	if cfg.Kafka.Sink.TradesTopic != "live-trader.trades" || cfg.Kafka.Producer.RequiredAcks != "all" {
		t.Errorf("Kafka = %+v", cfg.Kafka)
	}
	if cfg.Chart.MaxMarkers != 500 {
		t.Errorf("MaxMarkers = %d", cfg.Chart.MaxMarkers)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
stream:
  url: wss://signals.example.com/ws
reconnect:
  initial_interval: 500ms
subscription:
  autostart: true
  symbol: BTCUSDT
  indicators:
    - type: RSI
      params:
        period: 14
kafka:
  enabled: true
  brokers: [k1:9092, k2:9092]
  buffer_size: 10
logging:
  level: debug
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.URL != "wss://signals.example.com/ws" {
		t.Errorf("URL = %q", cfg.Stream.URL)
	}
	if cfg.Reconnect.InitialInterval != 500*time.Millisecond {
		t.Errorf("InitialInterval = %v", cfg.Reconnect.InitialInterval)
	}
	sub := cfg.Subscription
	if !sub.Autostart || sub.Symbol != "BTCUSDT" || len(sub.Indicators) != 1 || sub.Indicators[0].Params["period"] != 14 {
		t.Errorf("Subscription = %+v", sub)
	}
	if len(cfg.Kafka.Producer.Brokers) != 2 || cfg.Kafka.Sink.BufferSize != 10 {
		t.Errorf("Kafka = %+v", cfg.Kafka)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("LIVE_TRADER_STREAM_URL", "ws://127.0.0.1:9000/ws")
	t.Setenv("LIVE_TRADER_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("LIVE_TRADER_REDIS_ENABLED", "true")
	t.Setenv("LIVE_TRADER_SUBSCRIPTION_AUTOSTART", "true")
	t.Setenv("LIVE_TRADER_SUBSCRIPTION_SYMBOL", "ETHUSDT")
	t.Setenv("LIVE_TRADER_SUBSCRIPTION_INDICATORS", `[{"type":"MACD","params":{"fast":12}}]`)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.URL != "ws://127.0.0.1:9000/ws" {
		t.Errorf("URL = %q", cfg.Stream.URL)
	}
	if got := strings.Join(cfg.Kafka.Producer.Brokers, ","); got != "a:1,b:2" {
		t.Errorf("Brokers = %q", got)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled = false")
	}
	if cfg.Subscription.Symbol != "ETHUSDT" || len(cfg.Subscription.Indicators) != 1 || cfg.Subscription.Indicators[0].Type != "MACD" {
		t.Errorf("Subscription = %+v", cfg.Subscription)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"ok", func(c *config.Config) {}, ""},
		{"no service name", func(c *config.Config) { c.ServiceName = "" }, "service_name"},
		{"http url", func(c *config.Config) { c.Stream.URL = "http://x" }, "stream.url"},
		{"ping above read", func(c *config.Config) { c.Stream.PingInterval = 2 * c.Stream.ReadTimeout }, "ping_interval"},
		{"bad reconnect", func(c *config.Config) { c.Reconnect.MaxInterval = time.Millisecond }, "reconnect"},
		{"autostart needs symbol", func(c *config.Config) { c.Subscription.Autostart = true }, "subscription"},
		{"kafka acks", func(c *config.Config) { c.Kafka.Enabled = true; c.Kafka.Producer.RequiredAcks = "some" }, "kafka.acks"},
		{"kafka without brokers", func(c *config.Config) { c.Kafka.Enabled = true; c.Kafka.Producer.Brokers = nil }, "kafka.brokers"},
		{"redis url", func(c *config.Config) { c.Redis.Enabled = true; c.Redis.Storage.URL = "" }, "redis.url"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"http port", func(c *config.Config) { c.HTTP.Port = 0 }, "http.port"},
		{"http path", func(c *config.Config) { c.HTTP.ReadyzPath = "readyz" }, "readyz_path"},
		{"markers", func(c *config.Config) { c.Chart.MaxMarkers = 0 }, "chart.max_markers"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg, err := config.Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			c.mutate(cfg)
			err = cfg.Validate()
			if c.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("error = %v; want mention of %q", err, c.wantErr)
			}
		})
	}
}
