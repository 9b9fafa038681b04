// internal/transport/ws/config.go
package ws

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Config holds WebSocket dialer settings.
type Config struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	Header           http.Header   `mapstructure:"-"`
}

// ApplyDefaults applies fallback defaults if values are unset.
func (c *Config) ApplyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = c.ReadTimeout / 3
	}
}

// Validate checks config for required fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("ws: url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("ws: invalid url: %w", err)
	}
	switch {
	case u.Scheme != "ws" && u.Scheme != "wss":
		return fmt.Errorf("ws: url scheme must be ws or wss, got %q", u.Scheme)
	case c.PingInterval >= c.ReadTimeout:
		return fmt.Errorf("ws: ping_interval must be shorter than read_timeout")
	default:
		return nil
	}
}
