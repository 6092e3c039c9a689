package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/SafeDetector"
)

func main() {
	flow, err := safedetector.Conf("../../configs/safe-detector.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("safe detector exited: %v", err)
	}
}
