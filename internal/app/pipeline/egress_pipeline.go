package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// Fanout publishes every status to each publisher in order.
type Fanout []ports.StatusPublisher

func (f Fanout) Publish(s domain.SafetyStatus) {
	for _, p := range f {
		p.Publish(s)
	}
}

// QueuePublisher hands statuses to the egress queue. It never blocks: when the
// queue is full the policy decides which status is lost.
type QueuePublisher struct {
	q   ports.StatusQueue
	pol ports.Policy
	obs ports.Observability
}

func NewQueuePublisher(q ports.StatusQueue, pol ports.Policy, obs ports.Observability) *QueuePublisher {
	return &QueuePublisher{q: q, pol: pol, obs: obs}
}

func (p *QueuePublisher) Publish(s domain.SafetyStatus) {
	if !enqueueWithPolicy(p.q, s, p.pol, p.obs) {
		p.obs.IncCounter("safedetector_statuses_dropped_total", 1)
	}
}

func enqueueWithPolicy(q ports.StatusQueue, s domain.SafetyStatus, pol ports.Policy, obs ports.Observability) bool {
	if q.Enqueue(s) {
		return true
	}

	switch pol.OnQueueFull {
	case "drop_oldest":
		if q.DropOldest() {
			obs.IncCounter("safedetector_statuses_dropped_total", 1)
		}
		return q.Enqueue(s)
	case "drop":
		return false
	default:
		obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
		return false
	}
}

// RunEgressPipeline drains the queue into every sink until ctx is cancelled,
// then flushes what is still queued and returns. Failed writes are not retried.
func RunEgressPipeline(ctx context.Context, q ports.StatusQueue, sinks []ports.Sink, pol ports.Policy, obs ports.Observability) {
	idle := pol.IdleSleep
	if idle <= 0 {
		idle = 5 * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			flush(q, sinks, pol, obs)
			return
		default:
		}

		batch := q.DequeueBatch(pol.MaxBatchSize)
		obs.SetGauge("safedetector_egress_queue_length", float64(q.Len()))
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(idle):
			}
			continue
		}

		writeBatch(batch, sinks, obs)
	}
}

func flush(q ports.StatusQueue, sinks []ports.Sink, pol ports.Policy, obs ports.Observability) {
	for {
		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) == 0 {
			obs.SetGauge("safedetector_egress_queue_length", 0)
			return
		}
		writeBatch(batch, sinks, obs)
	}
}

func writeBatch(batch []domain.SafetyStatus, sinks []ports.Sink, obs ports.Observability) {
	for _, s := range sinks {
		if err := s.WriteBatch(batch); err != nil {
			obs.LogError("sink_write_failed", err,
				ports.Field{Key: "sink", Value: s.Name()},
				ports.Field{Key: "statuses", Value: len(batch)})
			obs.IncCounter("safedetector_sink_errors_total", 1)
			continue
		}
		obs.IncCounter("safedetector_statuses_delivered_total", float64(len(batch)))
	}
}
