package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineLimit fails when the process runs more than limit goroutines.
func GoroutineLimit(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, limit)
		}
		return nil
	}
}

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping adapts a Pinger to a CheckFunc.
func Ping(p Pinger) CheckFunc {
	return p.Ping
}
