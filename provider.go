package orrery

import (
	"context"
	"time"
)

// EphemerisProvider tries to produce the Moon state at a given time. A nil override
// with a nil error means the provider has nothing to offer.
type EphemerisProvider interface {
	MoonOverride(ctx context.Context, t time.Time) (*MoonOverride, error)
}

// ProviderFunc adapts a function to an EphemerisProvider.
type ProviderFunc func(ctx context.Context, t time.Time) (*MoonOverride, error)

// MoonOverride implements EphemerisProvider.
func (f ProviderFunc) MoonOverride(ctx context.Context, t time.Time) (*MoonOverride, error) {
	return f(ctx, t)
}
