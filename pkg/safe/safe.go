// pkg/safe/safe.go
package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

// PanicError is returned by a wrapped function that panicked.
type PanicError struct {
	Name  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic: %v", e.Name, e.Value)
}

// Func turns a panic inside fn into a *PanicError so an errgroup member
// cancels its siblings instead of crashing the process.
func Func(name string, log *logger.Logger, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.String("goroutine", name),
					zap.Any("error", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = &PanicError{Name: name, Value: r}
			}
		}()
		return fn(ctx)
	}
}
