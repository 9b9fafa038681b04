// internal/session/observer.go
package session

import (
	"encoding/json"
	"time"

	"github.com/selinkarabicakkk/trading-bot/internal/model"
	"github.com/selinkarabicakkk/trading-bot/internal/stats"
)

// Observer receives session notifications.
//
// Callbacks run synchronously while the Manager lock is held. They must not
// block and must not call back into the Manager.
type Observer interface {
	OnConnectionStateChanged(State)
	OnStats(stats.Stats)
	OnTrade(model.SignalEvent)
	OnError(message string)
	OnStatus(message string)
	OnReconnectScheduled(attempt int, delay time.Duration)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// the callbacks you need.
type NopObserver struct{}

func (NopObserver) OnConnectionStateChanged(State)          {}
func (NopObserver) OnStats(stats.Stats)                     {}
func (NopObserver) OnTrade(model.SignalEvent)               {}
func (NopObserver) OnError(string)                          {}
func (NopObserver) OnStatus(string)                         {}
func (NopObserver) OnReconnectScheduled(int, time.Duration) {}

// Observers fans every callback out to each element in order.
type Observers []Observer

func (o Observers) OnConnectionStateChanged(s State) {
	for _, x := range o {
		x.OnConnectionStateChanged(s)
	}
}

func (o Observers) OnStats(s stats.Stats) {
	for _, x := range o {
		x.OnStats(s)
	}
}

func (o Observers) OnTrade(ev model.SignalEvent) {
	for _, x := range o {
		x.OnTrade(ev)
	}
}

func (o Observers) OnError(msg string) {
	for _, x := range o {
		x.OnError(msg)
	}
}

func (o Observers) OnStatus(msg string) {
	for _, x := range o {
		x.OnStatus(msg)
	}
}

func (o Observers) OnReconnectScheduled(attempt int, delay time.Duration) {
	for _, x := range o {
		x.OnReconnectScheduled(attempt, delay)
	}
}

// SessionStartObserver is optionally implemented by observers that need
// the identity of each new session.
type SessionStartObserver interface {
	OnSessionStarted(sessionID string, sub model.SubscriptionConfig)
}

// OnSessionStarted notifies the elements that implement SessionStartObserver.
func (o Observers) OnSessionStarted(sessionID string, sub model.SubscriptionConfig) {
	for _, x := range o {
		if s, ok := x.(SessionStartObserver); ok {
			s.OnSessionStarted(sessionID, sub.Clone())
		}
	}
}

// ChartSink receives chart markers carried by trade signals.
type ChartSink interface {
	CreateMarker(marker json.RawMessage)
}

// chartResetter is implemented by sinks that clear on a new session.
type chartResetter interface {
	Reset()
}
