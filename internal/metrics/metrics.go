// internal/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// SessionState is the numeric session state (0=idle .. 5=stopped).
	SessionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "live_trader",
		Name:      "session_state",
		Help:      "Current session state (0=idle,1=connecting,2=open,3=closing,4=reconnecting,5=stopped)",
	})

	// FramesTotal counts inbound frames by decoded kind.
	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "live_trader",
		Name:      "frames_total",
		Help:      "Inbound frames by kind (signal, status, error, invalid)",
	}, []string{"kind"})

	// TradesTotal counts trade signals by side.
	TradesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "live_trader",
		Name:      "trades_total",
		Help:      "Trade signals received, by side",
	}, []string{"side"})

	// ReconnectsTotal counts scheduled reconnects.
	ReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "live_trader",
		Name:      "reconnects_total",
		Help:      "Reconnects scheduled after abnormal closures or failed opens",
	})

	// DialErrorsTotal counts failed dials and failed subscription writes.
	DialErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "live_trader",
		Name:      "dial_errors_total",
		Help:      "Failed connection opens",
	})

	// SinkDrops counts events dropped because a sink buffer was full.
	SinkDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "live_trader",
		Name:      "sink_drops_total",
		Help:      "Events dropped because the sink buffer was full",
	}, []string{"sink"})

	// SinkErrors counts sink writes that failed after retries.
	SinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "live_trader",
		Name:      "sink_errors_total",
		Help:      "Sink writes that failed after retries",
	}, []string{"sink"})
)

// Register registers all metrics in the given registry.
// Called without arguments it uses prometheus.DefaultRegisterer.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			SessionState,
			FramesTotal,
			TradesTotal,
			ReconnectsTotal,
			DialErrorsTotal,
			SinkDrops,
			SinkErrors,
		)
	})
}

func SetState(v int)           { SessionState.Set(float64(v)) }
func IncFrame(kind string)     { FramesTotal.WithLabelValues(kind).Inc() }
func IncTrade(side string)     { TradesTotal.WithLabelValues(side).Inc() }
func IncReconnect()            { ReconnectsTotal.Inc() }
func IncDialError()            { DialErrorsTotal.Inc() }
func IncSinkDrop(sink string)  { SinkDrops.WithLabelValues(sink).Inc() }
func IncSinkError(sink string) { SinkErrors.WithLabelValues(sink).Inc() }
