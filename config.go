package orrery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the engine configuration.
type Config struct {
	Start    time.Time
	Speed    float64 // Simulated seconds per real second
	FPS      float64
	Bodies   []string
	Scale    ScaleMapper
	Water    WaterConfig
	Currents CurrentsConfig
	Lunar    LunarConfig
	Override OverrideConfig
	Listen   string
	LogLevel string
}

// WaterConfig configures the displacement grid.
type WaterConfig struct {
	Enabled    bool
	Resolution int
	Rate       float64 // Regenerations per real second
	Wave       WaveParams
}

// CurrentsConfig configures the ocean current estimator.
type CurrentsConfig struct {
	Delta float64 // degrees
	Scale float64
}

// LunarConfig configures the periodic lunar ephemeris.
type LunarConfig struct {
	Refresh    time.Duration
	Thresholds PhaseThresholds
}

// OverrideConfig selects the external Moon provider.
type OverrideConfig struct {
	Source  string // none, meeus, http or chain
	URL     string
	Refresh time.Duration
}

// DefaultConfig returns the default configuration, starting now.
func DefaultConfig() Config {
	names := make([]string, 0, 10)
	for _, b := range SolarSystem() {
		names = append(names, b.Name)
	}
	return Config{
		Start:    time.Now().UTC(),
		Speed:    1,
		FPS:      60,
		Bodies:   names,
		Scale:    DefaultScaleMapper(),
		Water:    WaterConfig{Enabled: true, Resolution: 64, Rate: 2, Wave: DefaultWaveParams()},
		Currents: CurrentsConfig{Delta: DefaultCurrentDelta, Scale: DefaultCurrentScale},
		Lunar:    LunarConfig{Refresh: time.Minute, Thresholds: DefaultPhaseThresholds()},
		Override: OverrideConfig{Source: "none", Refresh: 10 * time.Minute},
		Listen:   ":8080",
		LogLevel: "info",
	}
}

// SetConfigDefaults registers the defaults on the provided viper instance.
func SetConfigDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("simulation.speed", d.Speed)
	v.SetDefault("simulation.fps", d.FPS)
	v.SetDefault("simulation.bodies", d.Bodies)
	v.SetDefault("display.scale", d.Scale.Mode.String())
	v.SetDefault("display.realistic", d.Scale.Realistic)
	v.SetDefault("display.logarithmic", d.Scale.Logarithmic)
	v.SetDefault("display.viewable", d.Scale.Viewable)
	v.SetDefault("water.enabled", d.Water.Enabled)
	v.SetDefault("water.resolution", d.Water.Resolution)
	v.SetDefault("water.rate", d.Water.Rate)
	v.SetDefault("water.wave.amplitude", d.Water.Wave.Amplitude)
	v.SetDefault("water.wave.omega", d.Water.Wave.Omega)
	v.SetDefault("water.wave.k", d.Water.Wave.K)
	v.SetDefault("currents.delta", d.Currents.Delta)
	v.SetDefault("currents.scale", d.Currents.Scale)
	v.SetDefault("lunar.refresh", d.Lunar.Refresh)
	v.SetDefault("lunar.thresholds.new", d.Lunar.Thresholds.New)
	v.SetDefault("lunar.thresholds.quarter_low", d.Lunar.Thresholds.QuarterLow)
	v.SetDefault("lunar.thresholds.quarter_high", d.Lunar.Thresholds.QuarterHigh)
	v.SetDefault("lunar.thresholds.full", d.Lunar.Thresholds.Full)
	v.SetDefault("override.source", d.Override.Source)
	v.SetDefault("override.refresh", d.Override.Refresh)
	v.SetDefault("server.listen", d.Listen)
	v.SetDefault("log.level", d.LogLevel)
}

// LoadConfig reads the configuration file at path (TOML, YAML or JSON) on top of the
// defaults. An empty path only returns the defaults.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	SetConfigDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return ConfigFromViper(v)
}

// ConfigFromViper builds and validates a configuration from a viper instance.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	mode, err := ParseScaleMode(v.GetString("display.scale"))
	if err != nil {
		return Config{}, err
	}
	conf := Config{
		Start:  readJDEorTime(v, "simulation.start"),
		Speed:  v.GetFloat64("simulation.speed"),
		FPS:    v.GetFloat64("simulation.fps"),
		Bodies: v.GetStringSlice("simulation.bodies"),
		Scale: ScaleMapper{
			Mode:        mode,
			Realistic:   v.GetFloat64("display.realistic"),
			Logarithmic: v.GetFloat64("display.logarithmic"),
			Viewable:    v.GetFloat64("display.viewable"),
		},
		Water: WaterConfig{
			Enabled:    v.GetBool("water.enabled"),
			Resolution: v.GetInt("water.resolution"),
			Rate:       v.GetFloat64("water.rate"),
			Wave: WaveParams{
				Amplitude: v.GetFloat64("water.wave.amplitude"),
				Omega:     v.GetFloat64("water.wave.omega"),
				K:         v.GetFloat64("water.wave.k"),
			},
		},
		Currents: CurrentsConfig{Delta: v.GetFloat64("currents.delta"), Scale: v.GetFloat64("currents.scale")},
		Lunar: LunarConfig{
			Refresh: v.GetDuration("lunar.refresh"),
			Thresholds: PhaseThresholds{
				New:         v.GetFloat64("lunar.thresholds.new"),
				QuarterLow:  v.GetFloat64("lunar.thresholds.quarter_low"),
				QuarterHigh: v.GetFloat64("lunar.thresholds.quarter_high"),
				Full:        v.GetFloat64("lunar.thresholds.full"),
			},
		},
		Override: OverrideConfig{
			Source:  strings.ToLower(v.GetString("override.source")),
			URL:     v.GetString("override.url"),
			Refresh: v.GetDuration("override.refresh"),
		},
		Listen:   v.GetString("server.listen"),
		LogLevel: v.GetString("log.level"),
	}
	if conf.Start.IsZero() {
		conf.Start = time.Now().UTC()
	}
	return conf, conf.Validate()
}

// Validate returns an error wrapping ErrInvalidConfig for out of range values.
// The water resolution is checked by the grid generator, which only disables the grid.
func (c Config) Validate() error {
	if !isFinite(c.Speed) {
		return fmt.Errorf("%w: speed %f", ErrInvalidConfig, c.Speed)
	}
	if !isFinite(c.FPS) || c.FPS <= 0 {
		return fmt.Errorf("%w: fps %f", ErrInvalidConfig, c.FPS)
	}
	if c.Scale.Realistic <= 0 || c.Scale.Logarithmic <= 0 || c.Scale.Viewable <= 0 {
		return fmt.Errorf("%w: scale factors must be strictly positive", ErrInvalidConfig)
	}
	if !c.Lunar.Thresholds.Valid() {
		return fmt.Errorf("%w: lunar thresholds %+v", ErrInvalidConfig, c.Lunar.Thresholds)
	}
	if c.Lunar.Refresh <= 0 {
		return fmt.Errorf("%w: lunar refresh %s must be strictly positive", ErrInvalidConfig, c.Lunar.Refresh)
	}
	if c.Override.Source != "" && c.Override.Source != "none" && c.Override.Refresh <= 0 {
		return fmt.Errorf("%w: override refresh %s must be strictly positive", ErrInvalidConfig, c.Override.Refresh)
	}
	switch c.Override.Source {
	case "", "none", "meeus", "chain":
	case "http":
		if c.Override.URL == "" {
			return fmt.Errorf("%w: override.url is required for the http source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: override source '%s'", ErrInvalidConfig, c.Override.Source)
	}
	for _, name := range c.Bodies {
		if _, err := BodyFromString(name); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
		}
	}
	return nil
}

// readJDEorTime reads a key either as a Julian date or as a time.
func readJDEorTime(v *viper.Viper, key string) time.Time {
	if jde := v.GetFloat64(key); jde != 0 {
		return JDToTime(jde)
	}
	return v.GetTime(key).UTC()
}
