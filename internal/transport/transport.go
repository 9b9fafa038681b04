// internal/transport/transport.go
package transport

import (
	"context"
	"errors"
	"fmt"
)

// WebSocket closure codes the session cares about.
const (
	CodeNormal   = 1000
	CodeAbnormal = 1006
)

// Conn is one established bidirectional stream.
//
// ReadMessage is called from a single goroutine. WriteJSON, CloseNormal and
// Close may be called concurrently with ReadMessage.
type Conn interface {
	// ReadMessage blocks until the next frame, a closure, or ctx is done.
	ReadMessage(ctx context.Context) ([]byte, error)
	// WriteJSON sends v as a single text frame.
	WriteJSON(ctx context.Context, v any) error
	// CloseNormal sends a 1000 close frame and waits for the peer's ack
	// via ReadMessage.
	CloseNormal(reason string) error
	// Close drops the socket without a handshake.
	Close() error
}

// Dialer opens new connections to the stream endpoint.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// CloseError reports a closure handshake with a status code.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed: code=%d reason=%q", e.Code, e.Reason)
}

// ClosureCode classifies err as a closure code. Anything that is not a
// close handshake counts as abnormal.
func ClosureCode(err error) int {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeAbnormal
}
