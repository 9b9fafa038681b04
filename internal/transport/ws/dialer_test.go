// internal/transport/ws/dialer_test.go
package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selinkarabicakkk/trading-bot/internal/transport"
	"github.com/selinkarabicakkk/trading-bot/internal/transport/ws"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// newServer starts an httptest WS server that runs handle for each connection.
func newServer(t *testing.T, handle func(c *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()
		handle(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) transport.Conn {
	t.Helper()
	d, err := ws.NewDialer(ws.Config{URL: url, ReadTimeout: 2 * time.Second}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	c, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ws.Config
		wantErr bool
	}{
		{"missing url", ws.Config{}, true},
		{"bad scheme", ws.Config{URL: "http://localhost"}, true},
		{"ping too slow", ws.Config{URL: "ws://x", ReadTimeout: time.Second, PingInterval: 2 * time.Second}, true},
		{"ok", ws.Config{URL: "wss://stream.example.com/ws"}, false},
	}
	for _, c := range cases {
		cfg := c.cfg
		cfg.ApplyDefaults()
		if err := cfg.Validate(); (err != nil) != c.wantErr {
			t.Errorf("%s: err=%v wantErr=%v", c.name, err, c.wantErr)
		}
	}
}

func TestConn_SubscribeReadAndNormalClose(t *testing.T) {
	got := make(chan string, 1)
	url := newServer(t, func(c *websocket.Conn) {
		_, sub, err := c.ReadMessage()
		if err != nil {
			return
		}
		got <- string(sub)
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"status":"success","message":"ok"}`))
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		_, _, _ = c.ReadMessage()
	})

	c := dial(t, url)
	ctx := context.Background()
	if err := c.WriteJSON(ctx, map[string]string{"symbol": "BTCUSDT"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	// WriteJSON terminates the document with a newline.
	if s := strings.TrimSpace(<-got); s != `{"symbol":"BTCUSDT"}` {
		t.Errorf("server received %s", s)
	}

	frame, err := c.ReadMessage(ctx)
	if err != nil || !strings.Contains(string(frame), "success") {
		t.Fatalf("ReadMessage: %q %v", frame, err)
	}
	_, err = c.ReadMessage(ctx)
	if code := transport.ClosureCode(err); code != transport.CodeNormal {
		t.Errorf("closure code = %d (%v); want 1000", code, err)
	}
}

func TestConn_ClientInitiatedClose(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		// default close handler echoes the close frame
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
	c := dial(t, url)
	if err := c.CloseNormal("user stop"); err != nil {
		t.Fatalf("CloseNormal: %v", err)
	}
	_, err := c.ReadMessage(context.Background())
	if code := transport.ClosureCode(err); code != transport.CodeNormal {
		t.Errorf("ack code = %d (%v); want 1000", code, err)
	}
}

func TestConn_AbnormalDrop(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		_ = c.UnderlyingConn().Close()
	})
	c := dial(t, url)
	_, err := c.ReadMessage(context.Background())
	if code := transport.ClosureCode(err); code != transport.CodeAbnormal {
		t.Errorf("code = %d (%v); want 1006", code, err)
	}
}

func TestConn_ReadCancelled(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		time.Sleep(500 * time.Millisecond)
	})
	c := dial(t, url)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.ReadMessage(ctx); err == nil {
		t.Fatal("expected error after cancellation")
	}
}

func TestDialer_Refused(t *testing.T) {
	d, err := ws.NewDialer(ws.Config{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: 200 * time.Millisecond}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	if _, err := d.Dial(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}
