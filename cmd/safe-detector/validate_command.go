package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghalamif/SafeDetector"
)

func newValidateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without starting the detector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := safedetector.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config %s looks good\n", *configPath)
			fmt.Fprintf(out, "  interval:         %s\n", cfg.Detector.Interval)
			fmt.Fprintf(out, "  distance sensors: %d\n", cfg.Detector.DistanceSensors)
			fmt.Fprintf(out, "  metrics:          %s\n", cfg.Metrics.Addr)
			return nil
		},
	}
}
