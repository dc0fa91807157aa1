package ephemeris

import (
	"fmt"

	"github.com/ChristopherRabotin/orrery"
	"github.com/go-kit/log"
)

// FromConfig returns the provider selected by the override configuration, or nil for
// the "none" source. The "chain" source tries the HTTP endpoint first, when one is
// configured, then falls back to Meeus.
func FromConfig(conf orrery.OverrideConfig, logger log.Logger) (orrery.EphemerisProvider, error) {
	switch conf.Source {
	case "", "none":
		return nil, nil
	case MeeusSource:
		return Meeus{}, nil
	case HTTPSource:
		if conf.URL == "" {
			return nil, fmt.Errorf("%w: override.url is required for the http source", orrery.ErrInvalidConfig)
		}
		return NewHTTP(conf.URL, logger), nil
	case "chain":
		var c Chain
		if conf.URL != "" {
			c = append(c, NewHTTP(conf.URL, logger))
		}
		return append(c, Meeus{}), nil
	}
	return nil, fmt.Errorf("%w: override source '%s'", orrery.ErrInvalidConfig, conf.Source)
}
