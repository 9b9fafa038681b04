// internal/chart/markers.go
package chart

import (
	"encoding/json"
	"sync"
)

// DefaultMaxMarkers bounds the buffer when no size is configured.
const DefaultMaxMarkers = 500

// MarkerBuffer keeps the most recent chart markers for an external chart
// widget to poll. It satisfies session.ChartSink.
type MarkerBuffer struct {
	mu    sync.RWMutex
	buf   []json.RawMessage
	next  int
	count int
}

// NewMarkerBuffer returns a buffer holding at most size markers.
func NewMarkerBuffer(size int) *MarkerBuffer {
	if size <= 0 {
		size = DefaultMaxMarkers
	}
	return &MarkerBuffer{buf: make([]json.RawMessage, size)}
}

// CreateMarker stores a copy of marker, evicting the oldest when full.
func (b *MarkerBuffer) CreateMarker(marker json.RawMessage) {
	cp := make(json.RawMessage, len(marker))
	copy(cp, marker)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf[b.next] = cp
	b.next = (b.next + 1) % len(b.buf)
	if b.count < len(b.buf) {
		b.count++
	}
}

// Markers returns the buffered markers, oldest first.
func (b *MarkerBuffer) Markers() []json.RawMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]json.RawMessage, 0, b.count)
	start := (b.next - b.count + len(b.buf)) % len(b.buf)
	for i := 0; i < b.count; i++ {
		out = append(out, b.buf[(start+i)%len(b.buf)])
	}
	return out
}

// Reset drops every marker.
func (b *MarkerBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.buf {
		b.buf[i] = nil
	}
	b.next, b.count = 0, 0
}
