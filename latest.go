package orrery

import (
	"context"
	"sync/atomic"
	"time"
)

// Latest is a single-slot cache: writers replace the value, readers never block.
// The zero value is empty and ready to use.
type Latest[T any] struct {
	v atomic.Pointer[T]
}

// Store replaces the cached value.
func (l *Latest[T]) Store(v T) {
	l.v.Store(&v)
}

// Load returns the cached value and whether one was ever stored.
func (l *Latest[T]) Load() (T, bool) {
	p := l.v.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Every calls fn immediately and then every d until ctx is done.
func Every(ctx context.Context, d time.Duration, fn func(context.Context)) {
	if d <= 0 {
		return
	}
	fn(ctx)
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
