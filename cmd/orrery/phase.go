package main

import (
	"fmt"
	"time"

	"github.com/ChristopherRabotin/orrery"
	"github.com/ChristopherRabotin/orrery/ephemeris"
	"github.com/spf13/cobra"
)

func (a *app) newPhaseCmd() *cobra.Command {
	var precise bool
	cmd := &cobra.Command{
		Use:   "phase [date]",
		Short: "Print the lunar phase and the tide for a date (defaults to now)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := a.config()
			if err != nil {
				return err
			}
			t := time.Now().UTC()
			if len(args) == 1 {
				if t, err = parseDate(args[0]); err != nil {
					return err
				}
			}
			ephem := orrery.LunarEphemeris{Thresholds: conf.Lunar.Thresholds}
			jd := orrery.TimeToJD(t)
			var override *orrery.MoonOverride
			if precise {
				if override, err = (ephemeris.Meeus{}).MoonOverride(cmd.Context(), t); err != nil {
					return err
				}
			}
			p := ephem.SnapshotWith(jd, override)
			model := orrery.NewTidalModel()
			forces, err := model.Forces(p.Distance, orrery.AU)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "date:         %s (JD %.5f)\n", t.Format(dateFormat), jd)
			fmt.Fprintf(out, "phase:        %s (%.4f, %s)\n", p.Name, p.Phase, waxing(p))
			fmt.Fprintf(out, "illumination: %.1f%%\n", p.Illumination)
			fmt.Fprintf(out, "age:          %.2f days\n", p.Age)
			fmt.Fprintf(out, "distance:     %.0f km\n", p.Distance)
			fmt.Fprintf(out, "next full:    %s\n", p.NextFull.Format(dateFormat))
			fmt.Fprintf(out, "next new:     %s\n", p.NextNew.Format(dateFormat))
			fmt.Fprintf(out, "tide:         %s (strength %.2f, lunar/solar %.2f)\n", orrery.ClassifyTide(p.Phase), orrery.TideStrength(p.Phase), forces.Ratio)
			fmt.Fprintf(out, "source:       %s\n", p.Source)
			return nil
		},
	}
	cmd.Flags().BoolVar(&precise, "meeus", false, "use the Meeus lunar theory for illumination and distance")
	return cmd
}

func waxing(p orrery.LunarPhase) string {
	if p.Waxing() {
		return "waxing"
	}
	return "waning"
}
