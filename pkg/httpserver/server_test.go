// pkg/httpserver/server_test.go
package httpserver_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/selinkarabicakkk/trading-bot/pkg/httpserver"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := httpserver.New(httpserver.Config{}, func() error { return nil }, logger.NewNop(), nil); err == nil {
		t.Error("expected error without Addr/Port")
	}
}

func TestServer_OpsEndpointsAndAPI(t *testing.T) {
	ready := errors.New("session not open")
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/panic" {
			panic("boom")
		}
		_, _ = w.Write([]byte("api:" + r.URL.Path))
	})

	srv, err := httpserver.New(httpserver.Config{Port: 8080}, func() error { return ready }, logger.NewNop(), api,
		httpserver.RecoverMiddleware(logger.NewNop()),
		httpserver.RequestIDMiddleware(),
		httpserver.CORSMiddleware(),
		httpserver.MetricsMiddleware(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := srv.Handler()

	cases := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/healthz", http.StatusOK, "OK"},
		{"/readyz", http.StatusServiceUnavailable, "NOT READY"},
		{"/api/v1/stats", http.StatusOK, "api:/api/v1/stats"},
		{"/api/panic", http.StatusInternalServerError, "internal server error"},
		{"/metrics", http.StatusOK, ""},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.path, nil))
		body, _ := io.ReadAll(rec.Body)
		if rec.Code != c.wantCode || !strings.Contains(string(body), c.wantBody) {
			t.Errorf("%s: code=%d body=%q", c.path, rec.Code, body)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing X-Request-ID", c.path)
		}
	}

	ready = nil
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz after ready: %d", rec.Code)
	}
}
