// internal/transport/ws/dialer.go
package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/selinkarabicakkk/trading-bot/internal/transport"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

// Dialer opens gorilla/websocket connections to a single stream URL.
type Dialer struct {
	cfg    Config
	log    *logger.Logger
	dialer *websocket.Dialer
}

var _ transport.Dialer = (*Dialer)(nil)

// NewDialer validates cfg and builds a Dialer.
func NewDialer(cfg Config, log *logger.Logger) (*Dialer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dialer{
		cfg: cfg,
		log: log.Named("ws-dialer"),
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}, nil
}

// Dial performs the WebSocket handshake and starts the ping loop.
func (d *Dialer) Dial(ctx context.Context) (transport.Conn, error) {
	raw, resp, err := d.dialer.DialContext(ctx, d.cfg.URL, d.cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws: dial %s: %w (status %d)", d.cfg.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("ws: dial %s: %w", d.cfg.URL, err)
	}
	d.log.Info("ws: connected", zap.String("url", d.cfg.URL))

	c := &conn{
		ws:          raw,
		log:         d.log,
		readTimeout: d.cfg.ReadTimeout,
		done:        make(chan struct{}),
	}

	_ = raw.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
	})
	go c.pingLoop(d.cfg.PingInterval)
	return c, nil
}

// -----------------------------------------------------------------------------
// conn
// -----------------------------------------------------------------------------

type conn struct {
	ws          *websocket.Conn
	log         *logger.Logger
	readTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (c *conn) pingLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				c.log.Warn("ws: ping failed", zap.Error(err))
			}
		}
	}
}

func (c *conn) ReadMessage(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &transport.CloseError{Code: ce.Code, Reason: ce.Text}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("ws: read: %w", err)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	return data, nil
}

func (c *conn) WriteJSON(ctx context.Context, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	_ = c.ws.SetWriteDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	if err := c.ws.WriteJSON(v); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ws: write: %w", ctxErr)
		}
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}

func (c *conn) CloseNormal(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		return fmt.Errorf("ws: close handshake: %w", err)
	}
	return nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}
