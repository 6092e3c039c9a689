package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ghalamif/SafeDetector"
)

// Drives the detector from a simulated climb and reads statuses off a channel.
func main() {
	flow, err := safedetector.Conf("../../configs/safe-detector.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	sink, batches, closeBatches := safedetector.NewChannelSink("fanout", 32)
	rt, err := flow.Options(safedetector.WithoutMetricsServer()).StreamOUT(safedetector.StreamOutSink(sink))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	if err := rt.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}

	go consume(batches)

	in := rt.Inputs()
	in.PublishArmingState(safedetector.ArmingStateArmed)
	for step := 0; step < 100; step++ {
		altitude := float32(8 * math.Sin(float64(step)/100*math.Pi))
		if err := in.PublishDistance(0, altitude); err != nil {
			log.Fatalf("publish distance: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	in.PublishArmingState(safedetector.ArmingStateStandby)
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	closeBatches()
}

func consume(batches <-chan []safedetector.SafetyStatus) {
	for batch := range batches {
		unsafe := 0
		for _, s := range batch {
			if !s.Flag {
				unsafe++
			}
		}
		fmt.Printf("[%s] %d statuses, %d unsafe\n", time.Now().Format(time.RFC3339), len(batch), unsafe)
	}
}
