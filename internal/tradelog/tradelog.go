// internal/tradelog/tradelog.go
package tradelog

import (
	"sync"

	"github.com/selinkarabicakkk/trading-bot/internal/model"
)

// Log is an append-only, ordered record of trade signals for one session.
// Readers may run concurrently with the single writer.
type Log struct {
	mu     sync.RWMutex
	events []model.SignalEvent
}

// New returns an empty Log.
func New() *Log { return &Log{} }

// Append adds ev after every previously appended event.
func (l *Log) Append(ev model.SignalEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

// All returns a copy of every event, oldest first.
func (l *Log) All() []model.SignalEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.SignalEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Latest returns a copy of the last n events, oldest first.
// n <= 0 or n >= Len() returns everything.
func (l *Log) Latest(n int) []model.SignalEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if n > 0 && n < len(l.events) {
		start = len(l.events) - n
	}
	out := make([]model.SignalEvent, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// Len reports the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Reset drops all events. Only used when a new session starts.
func (l *Log) Reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}
