package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// statusMetrics are the series printed by the status command, in order.
var statusMetrics = []string{
	"safedetector_running",
	"safedetector_safe",
	"safedetector_armed",
	"safedetector_distance_meters",
	"safedetector_ticks_total",
	"safedetector_unsafe_ticks_total",
	"safedetector_egress_queue_length",
	"safedetector_statuses_dropped_total",
}

func newStatusCommand() *cobra.Command {
	var url string
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the live detector state from its metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 2 * time.Second}
			out := cmd.OutOrStdout()
			if !watch {
				return printSnapshot(out, client, url)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			fmt.Fprintf(out, "Streaming status from %s (Ctrl+C to stop)\n", url)
			for {
				if err := printSnapshot(out, client, url); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "status error: %v\n", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval with --watch")
	return cmd
}

func printSnapshot(out io.Writer, client *http.Client, url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := parseMetrics(resp.Body, statusMetrics)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, formatSnapshot(time.Now(), values))
	return nil
}

// parseMetrics extracts unlabelled samples for the wanted series from the
// Prometheus text format.
func parseMetrics(r io.Reader, wanted []string) (map[string]float64, error) {
	want := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		want[name] = true
	}

	values := make(map[string]float64, len(wanted))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !want[fields[0]] {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		values[fields[0]] = v
	}
	return values, scanner.Err()
}

func formatSnapshot(now time.Time, values map[string]float64) string {
	state := "stopped"
	if values["safedetector_running"] == 1 {
		state = "running"
	}
	flag := "UNSAFE"
	if values["safedetector_safe"] == 1 {
		flag = "safe"
	}
	return fmt.Sprintf("[%s] state=%s flag=%s armed=%t distance=%.2fm ticks=%.0f unsafe_ticks=%.0f queue=%.0f dropped=%.0f",
		now.Format(time.RFC3339),
		state,
		flag,
		values["safedetector_armed"] == 1,
		values["safedetector_distance_meters"],
		values["safedetector_ticks_total"],
		values["safedetector_unsafe_ticks_total"],
		values["safedetector_egress_queue_length"],
		values["safedetector_statuses_dropped_total"],
	)
}
