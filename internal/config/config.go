// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/selinkarabicakkk/trading-bot/internal/chart"
	"github.com/selinkarabicakkk/trading-bot/internal/model"
	"github.com/selinkarabicakkk/trading-bot/internal/sink/kafkasink"
	"github.com/selinkarabicakkk/trading-bot/pkg/backoff"
	"github.com/selinkarabicakkk/trading-bot/pkg/httpserver"
	"github.com/selinkarabicakkk/trading-bot/pkg/kafka"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
	"github.com/selinkarabicakkk/trading-bot/pkg/redis"
	"github.com/selinkarabicakkk/trading-bot/pkg/telemetry"
)

const envPrefix = "LIVE_TRADER"

// -----------------------------------------------------------------------------
// Structures
// -----------------------------------------------------------------------------

// Config holds every setting of the live-trader process.
type Config struct {
	ServiceName    string             `mapstructure:"service_name"`
	ServiceVersion string             `mapstructure:"service_version"`
	Stream         StreamConfig       `mapstructure:"stream"`
	Reconnect      backoff.Policy     `mapstructure:"reconnect"`
	Subscription   SubscriptionConfig `mapstructure:"subscription"`
	Kafka          KafkaConfig        `mapstructure:"kafka"`
	Redis          RedisConfig        `mapstructure:"redis"`
	Telemetry      telemetry.Config   `mapstructure:"telemetry"`
	Logging        logger.Config      `mapstructure:"logging"`
	HTTP           httpserver.Config  `mapstructure:"http"`
	Chart          ChartConfig        `mapstructure:"chart"`
}

// StreamConfig describes the signal WebSocket endpoint.
type StreamConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	CloseTimeout     time.Duration `mapstructure:"close_timeout"`
}

// SubscriptionConfig is the subscription sent on autostart.
type SubscriptionConfig struct {
	model.SubscriptionConfig `mapstructure:",squash"`
	Autostart                bool `mapstructure:"autostart"`
}

// KafkaConfig enables the Kafka export.
type KafkaConfig struct {
	Enabled  bool             `mapstructure:"enabled"`
	Producer kafka.Config     `mapstructure:",squash"`
	Sink     kafkasink.Config `mapstructure:",squash"`
}

// RedisConfig enables the Redis stats snapshot.
type RedisConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Storage redis.Config `mapstructure:",squash"`
}

type ChartConfig struct {
	MaxMarkers int `mapstructure:"max_markers"`
}

// -----------------------------------------------------------------------------
// Loader
// -----------------------------------------------------------------------------

// Load reads defaults, then LIVE_TRADER_* env vars, then the optional file at
// path, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v, reflect.TypeOf(Config{}), "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &cfg,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonToIndicatorsHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToBoolHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "live-trader")
	v.SetDefault("service_version", "v1.0.0")

	// Stream
	v.SetDefault("stream.url", "ws://localhost:8000/ws/live")
	v.SetDefault("stream.handshake_timeout", "10s")
	v.SetDefault("stream.read_timeout", "60s")
	v.SetDefault("stream.ping_interval", "20s")
	v.SetDefault("stream.write_timeout", "5s")
	v.SetDefault("stream.close_timeout", "5s")

	// Reconnect
	v.SetDefault("reconnect.initial_interval", "1s")
	v.SetDefault("reconnect.max_interval", "30s")
	v.SetDefault("reconnect.multiplier", 2.0)

	// Subscription
	v.SetDefault("subscription.symbol", "")
	v.SetDefault("subscription.indicators", []any{})
	v.SetDefault("subscription.autostart", false)

	// Kafka
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.trades_topic", "live-trader.trades")
	v.SetDefault("kafka.stats_topic", "live-trader.stats")
	v.SetDefault("kafka.acks", "all")
	v.SetDefault("kafka.compression", "none")
	v.SetDefault("kafka.timeout", "15s")
	v.SetDefault("kafka.buffer_size", 1000)
	v.SetDefault("kafka.drain_timeout", "5s")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.ttl", "10m")

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otel_endpoint", "otel-collector:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.reconnect_period", "5s")
	v.SetDefault("telemetry.timeout", "5s")
	v.SetDefault("telemetry.sampler_ratio", 1.0)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dev_mode", false)

	// HTTP
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "5s")
	v.SetDefault("http.metrics_path", "/metrics")
	v.SetDefault("http.healthz_path", "/healthz")
	v.SetDefault("http.readyz_path", "/readyz")

	// Chart
	v.SetDefault("chart.max_markers", chart.DefaultMaxMarkers)
}

// bindEnv registers every leaf key so AutomaticEnv also reaches keys that
// have no default and are absent from the file.
func bindEnv(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "-" || !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		key := prefix
		if opts != "squash" {
			if name == "" {
				name = strings.ToLower(f.Name)
			}
			key = join(prefix, name)
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			bindEnv(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// stringToBoolHook parses true/false, otherwise passes data through.
func stringToBoolHook(f, t reflect.Kind, data interface{}) (interface{}, error) {
	if f == reflect.String && t == reflect.Bool {
		return strconv.ParseBool(data.(string))
	}
	return data, nil
}

// jsonToIndicatorsHook lets LIVE_TRADER_SUBSCRIPTION_INDICATORS carry a JSON array.
func jsonToIndicatorsHook(f, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf([]model.Indicator{}) {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" {
		return []model.Indicator{}, nil
	}
	var out []model.Indicator
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("subscription.indicators: %w", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func (c *Config) Validate() error {
	// Service
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required")
	}

	// Stream
	if err := validateStream(&c.Stream); err != nil {
		return err
	}

	// Reconnect
	if err := c.Reconnect.Validate(); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}

	// Subscription
	if c.Subscription.Autostart {
		if err := c.Subscription.SubscriptionConfig.Validate(); err != nil {
			return fmt.Errorf("subscription: %w", err)
		}
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Producer.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required")
		}
		if c.Kafka.Sink.TradesTopic == "" || c.Kafka.Sink.StatsTopic == "" {
			return fmt.Errorf("kafka.trades_topic and kafka.stats_topic are required")
		}
		switch strings.ToLower(c.Kafka.Producer.RequiredAcks) {
		case "all", "leader", "none":
		default:
			return fmt.Errorf("kafka.acks must be one of [all, leader, none]")
		}
		switch strings.ToLower(c.Kafka.Producer.Compression) {
		case "none", "gzip", "snappy", "lz4", "zstd":
		default:
			return fmt.Errorf("kafka.compression must be one of [none, gzip, snappy, lz4, zstd]")
		}
		if c.Kafka.Sink.BufferSize <= 0 {
			return fmt.Errorf("kafka.buffer_size must be > 0")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Storage.URL == "" {
			return fmt.Errorf("redis.url is required")
		}
		if c.Redis.Storage.TTL <= 0 {
			return fmt.Errorf("redis.ttl must be > 0")
		}
	}

	// Telemetry
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.otel_endpoint is required")
	}
	if c.Telemetry.SamplerRatio < 0 || c.Telemetry.SamplerRatio > 1 {
		return fmt.Errorf("telemetry.sampler_ratio must be within [0, 1]")
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error]")
	}

	// HTTP
	if err := validateHTTP(&c.HTTP); err != nil {
		return err
	}

	// Chart
	if c.Chart.MaxMarkers <= 0 {
		return fmt.Errorf("chart.max_markers must be > 0")
	}
	return nil
}

func validateStream(s *StreamConfig) error {
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("stream.url must be a ws:// or wss:// URL, got %q", s.URL)
	}
	durations := map[string]time.Duration{
		"stream.handshake_timeout": s.HandshakeTimeout,
		"stream.read_timeout":      s.ReadTimeout,
		"stream.ping_interval":     s.PingInterval,
		"stream.write_timeout":     s.WriteTimeout,
		"stream.close_timeout":     s.CloseTimeout,
	}
	for k, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", k)
		}
	}
	if s.PingInterval >= s.ReadTimeout {
		return fmt.Errorf("stream.ping_interval must be < stream.read_timeout")
	}
	return nil
}

func validateHTTP(h *httpserver.Config) error {
	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}
	durations := map[string]time.Duration{
		"http.read_timeout":     h.ReadTimeout,
		"http.write_timeout":    h.WriteTimeout,
		"http.idle_timeout":     h.IdleTimeout,
		"http.shutdown_timeout": h.ShutdownTimeout,
	}
	for k, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", k)
		}
	}
	paths := map[string]string{
		"http.metrics_path": h.MetricsPath,
		"http.healthz_path": h.HealthzPath,
		"http.readyz_path":  h.ReadyzPath,
	}
	for k, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/'", k)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Debug print
// -----------------------------------------------------------------------------

// Print writes the effective configuration as JSON, handy in dev mode.
func (c *Config) Print() {
	b, _ := json.MarshalIndent(c, "", "  ")
	fmt.Println("Loaded configuration:\n", string(b))
}
