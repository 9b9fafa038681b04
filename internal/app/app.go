// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selinkarabicakkk/trading-bot/internal/chart"
	"github.com/selinkarabicakkk/trading-bot/internal/config"
	"github.com/selinkarabicakkk/trading-bot/internal/httpapi"
	"github.com/selinkarabicakkk/trading-bot/internal/metrics"
	"github.com/selinkarabicakkk/trading-bot/internal/session"
	"github.com/selinkarabicakkk/trading-bot/internal/sink/kafkasink"
	"github.com/selinkarabicakkk/trading-bot/internal/sink/redissink"
	"github.com/selinkarabicakkk/trading-bot/internal/transport/ws"
	"github.com/selinkarabicakkk/trading-bot/pkg/httpserver"
	"github.com/selinkarabicakkk/trading-bot/pkg/kafka"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
	"github.com/selinkarabicakkk/trading-bot/pkg/redis"
	"github.com/selinkarabicakkk/trading-bot/pkg/safe"
	"github.com/selinkarabicakkk/trading-bot/pkg/telemetry"
)

// stopGrace is added to the close timeout when waiting for the session to end.
const stopGrace = time.Second

// Run wires every component and blocks until ctx is cancelled or a
// component fails. The session is stopped before the sinks are drained.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// === Metrics
	metrics.Register(prometheus.DefaultRegisterer)
	httpserver.RegisterMetrics(prometheus.DefaultRegisterer)

	// === Telemetry
	cfg.Telemetry.ServiceName = cfg.ServiceName
	cfg.Telemetry.ServiceVersion = cfg.ServiceVersion
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownSafe(context.Background(), "telemetry", shutdownTracer, log)

	// === Stream transport
	dialer, err := ws.NewDialer(ws.Config{
		URL:              cfg.Stream.URL,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		ReadTimeout:      cfg.Stream.ReadTimeout,
		PingInterval:     cfg.Stream.PingInterval,
	}, log)
	if err != nil {
		return fmt.Errorf("ws dialer: %w", err)
	}

	// === Chart
	markers := chart.NewMarkerBuffer(cfg.Chart.MaxMarkers)

	opts := []session.Option{
		session.WithChart(markers),
		session.WithTracer(telemetry.Tracer("live-trader/session")),
	}
	sinks := map[string]func(context.Context) error{}

	// === Kafka export
	if cfg.Kafka.Enabled {
		prod, err := kafka.New(ctx, cfg.Kafka.Producer, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer shutdownSafe(context.Background(), "kafka-producer", func(context.Context) error {
			return prod.Close()
		}, log)

		ks := kafkasink.New(cfg.Kafka.Sink, prod, log)
		opts = append(opts, session.WithObserver(ks))
		sinks["kafka-sink"] = ks.Run
	}

	// === Redis snapshot
	if cfg.Redis.Enabled {
		store, err := redis.New(ctx, cfg.Redis.Storage, log)
		if err != nil {
			return fmt.Errorf("redis storage: %w", err)
		}
		defer shutdownSafe(context.Background(), "redis", func(context.Context) error {
			return store.Close()
		}, log)

		rs := redissink.New(store, log)
		opts = append(opts, session.WithObserver(rs))
		sinks["redis-sink"] = rs.Run
	}

	// === Session
	mgr := session.NewManager(session.Config{
		Reconnect:    cfg.Reconnect,
		WriteTimeout: cfg.Stream.WriteTimeout,
		CloseTimeout: cfg.Stream.CloseTimeout,
	}, dialer, log, opts...)

	// === HTTP
	readiness := func() error {
		if s := mgr.State(); s != session.Open {
			return fmt.Errorf("session is %s", s)
		}
		return nil
	}
	api := httpapi.Routes(httpapi.NewHandler(mgr, markers, log))
	httpSrv, err := httpserver.New(cfg.HTTP, readiness, log, api,
		httpserver.RecoverMiddleware(log),
		httpserver.RequestIDMiddleware(),
		httpserver.CORSMiddleware(),
		httpserver.MetricsMiddleware(),
	)
	if err != nil {
		return fmt.Errorf("httpserver init: %w", err)
	}

	// === Autostart
	if cfg.Subscription.Autostart {
		if err := mgr.Start(cfg.Subscription.SubscriptionConfig); err != nil {
			return fmt.Errorf("autostart: %w", err)
		}
	}

	log.WithContext(ctx).Info("live-trader: starting services", zap.Int("sinks", len(sinks)))

	sinkCtx, stopSinks := context.WithCancel(context.Background())
	defer stopSinks()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Start(gctx) })
	for name, run := range sinks {
		run := safe.Func(name, log, run)
		g.Go(func() error { return run(sinkCtx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		stopSession(mgr, cfg.Stream.CloseTimeout+stopGrace, log)
		stopSinks()
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.WithContext(ctx).Info("live-trader shut down cleanly")
			return nil
		}
		log.WithContext(ctx).Error("live-trader exited with error", zap.Error(err))
		return err
	}

	log.WithContext(ctx).Info("live-trader shut down complete")
	return nil
}

// stopSession ends a running session and waits for it to reach Stopped.
func stopSession(mgr *session.Manager, timeout time.Duration, log *logger.Logger) {
	if err := mgr.Stop(); err != nil {
		if !errors.Is(err, session.ErrInvalidTransition) {
			log.Warn("session stop failed", zap.Error(err))
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := mgr.Wait(ctx); err != nil {
		log.Warn("session did not stop in time", zap.Error(err))
		return
	}
	st := mgr.Stats()
	log.Info("session stopped",
		zap.Int("trades", st.TotalTrades),
		zap.String("total_profit", st.TotalProfit.String()),
		zap.String("success_rate", st.SuccessRate.StringFixed(2)),
	)
}

func shutdownSafe(ctx context.Context, name string, fn func(context.Context) error, log *logger.Logger) {
	log.WithContext(ctx).Info(name + ": shutting down")
	if err := fn(ctx); err != nil {
		log.WithContext(ctx).Error(name+" shutdown failed", zap.Error(err))
	} else {
		log.WithContext(ctx).Info(name + ": shutdown complete")
	}
}
