package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghalamif/SafeDetector"
)

func newStartCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the detector and run until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := safedetector.Conf(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt, err := flow.StreamOUT()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := rt.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "safe-detector %s running (config %s)\n", rt.ID(), *configPath)

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

		loop:
			for {
				select {
				case <-ctx.Done():
					break loop
				case <-hup:
					if err := rt.Reload(); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "reload: %v\n", err)
					}
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return rt.Shutdown(shutdownCtx)
		},
	}
}
