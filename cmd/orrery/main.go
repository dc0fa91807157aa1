package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ChristopherRabotin/orrery"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const dateFormat = "2006-01-02 15:04:05"

// app holds the state shared by the commands.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:          "orrery",
		Short:        "Solar system orbit and tide simulator",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "configuration file (TOML, YAML or JSON)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	root.AddCommand(a.newRunCmd(), a.newPhaseCmd(), a.newExportCmd())
	return root
}

// config merges the defaults, the configuration file, the ORRERY_* environment
// variables and the flags.
func (a *app) config() (orrery.Config, error) {
	orrery.SetConfigDefaults(a.v)
	a.v.SetEnvPrefix("orrery")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return orrery.Config{}, fmt.Errorf("%s: %w", a.cfgFile, err)
		}
	}
	return orrery.ConfigFromViper(a.v)
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(lvl, level.InfoValue())))
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

// parseDate reads a Julian date, an RFC 3339 time, a date-time or a date.
func parseDate(s string) (time.Time, error) {
	if jd, err := strconv.ParseFloat(s, 64); err == nil {
		return orrery.JDToTime(jd), nil
	}
	for _, layout := range []string{time.RFC3339, dateFormat, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date '%s'", s)
}
