package ephemeris

import (
	"context"
	"errors"
	"time"

	"github.com/ChristopherRabotin/orrery"
)

// Chain asks each provider in turn and returns the first valid override. When none
// is valid, the errors of all the providers are joined.
type Chain []orrery.EphemerisProvider

// MoonOverride implements orrery.EphemerisProvider.
func (c Chain) MoonOverride(ctx context.Context, t time.Time) (*orrery.MoonOverride, error) {
	var errs []error
	for _, p := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o, err := p.MoonOverride(ctx, t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if o.Valid() {
			return o, nil
		}
	}
	return nil, errors.Join(errs...)
}
