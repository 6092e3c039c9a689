package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/SafeDetector/pkg/safedetector"
)

// Prints every flag transition; the detector itself publishes at 200 Hz.
func main() {
	flow, err := safedetector.Conf("../../configs/safe-detector.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	first := true
	var last bool
	callback := func(batch []safedetector.SafetyStatus) error {
		for _, status := range batch {
			if !first && status.Flag == last {
				continue
			}
			first = false
			last = status.Flag
			fmt.Printf("t=%dus safe=%t\n", status.Timestamp, status.Flag)
		}
		return nil
	}

	if err := flow.Run(ctx, safedetector.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
