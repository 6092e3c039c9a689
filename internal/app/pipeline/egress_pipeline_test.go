package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/SafeDetector/internal/adapters/queue"
	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

func TestQueuePublisherDropNewest(t *testing.T) {
	q := queue.NewMemQueue(1)
	obs := &mockObs{}
	pub := NewQueuePublisher(q, ports.Policy{OnQueueFull: "drop"}, obs)

	pub.Publish(domain.SafetyStatus{Timestamp: 1})
	pub.Publish(domain.SafetyStatus{Timestamp: 2})

	batch := q.DequeueBatch(0)
	if len(batch) != 1 || batch[0].Timestamp != 1 {
		t.Fatalf("expected oldest status to survive, got %+v", batch)
	}
	if obs.counter("safedetector_statuses_dropped_total") != 1 {
		t.Fatalf("expected one drop to be counted")
	}
}

func TestQueuePublisherDropOldest(t *testing.T) {
	q := queue.NewMemQueue(2)
	obs := &mockObs{}
	pub := NewQueuePublisher(q, ports.Policy{OnQueueFull: "drop_oldest"}, obs)

	for ts := uint64(1); ts <= 3; ts++ {
		pub.Publish(domain.SafetyStatus{Timestamp: ts})
	}

	batch := q.DequeueBatch(0)
	if len(batch) != 2 || batch[0].Timestamp != 2 || batch[1].Timestamp != 3 {
		t.Fatalf("expected newest statuses to survive, got %+v", batch)
	}
	if obs.counter("safedetector_statuses_dropped_total") != 1 {
		t.Fatalf("expected one drop to be counted")
	}
}

func TestEnqueueWithPolicyInvalid(t *testing.T) {
	for _, policy := range []string{"block", "reject", ""} {
		q := queue.NewMemQueue(1)
		q.Enqueue(domain.SafetyStatus{})
		obs := &mockObs{}

		if ok := enqueueWithPolicy(q, domain.SafetyStatus{}, ports.Policy{OnQueueFull: policy}, obs); ok {
			t.Fatalf("expected enqueue to fail for unsupported policy %q", policy)
		}
		if len(obs.errors) == 0 {
			t.Fatalf("expected unsupported policy %q to log an error", policy)
		}
	}
}

func TestFanoutPublishesToAll(t *testing.T) {
	a, b := queue.NewMemQueue(4), queue.NewMemQueue(4)
	obs := &mockObs{}
	pol := ports.Policy{OnQueueFull: "drop"}
	fan := Fanout{NewQueuePublisher(a, pol, obs), NewQueuePublisher(b, pol, obs)}

	fan.Publish(domain.SafetyStatus{Flag: true})
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("expected both publishers to receive the status")
	}
}

func TestRunEgressPipelineDeliversAndFlushes(t *testing.T) {
	q := queue.NewMemQueue(16)
	for ts := uint64(1); ts <= 5; ts++ {
		q.Enqueue(domain.SafetyStatus{Timestamp: ts})
	}
	good := &mockSink{name: "good"}
	bad := &mockSink{name: "bad", err: errors.New("down")}
	obs := &mockObs{}
	pol := ports.Policy{MaxBatchSize: 2, IdleSleep: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunEgressPipeline(ctx, q, []ports.Sink{good, bad}, pol, obs)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for good.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	q.Enqueue(domain.SafetyStatus{Timestamp: 6})
	cancel()
	<-done

	if got := good.count(); got != 6 {
		t.Fatalf("expected 6 statuses delivered to good sink, got %d", got)
	}
	if obs.counter("safedetector_statuses_delivered_total") != 6 {
		t.Fatalf("expected delivered counter 6, got %f", obs.counter("safedetector_statuses_delivered_total"))
	}
	if obs.counter("safedetector_sink_errors_total") == 0 {
		t.Fatalf("expected failing sink to be counted")
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue to be flushed, got %d", q.Len())
	}
}

type mockSink struct {
	mu       sync.Mutex
	name     string
	err      error
	received []domain.SafetyStatus
}

func (m *mockSink) WriteBatch(statuses []domain.SafetyStatus) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, statuses...)
	return nil
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

type mockObs struct {
	mu       sync.Mutex
	errors   []error
	counters map[string]float64
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]float64{}
	}
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}
func (m *mockObs) Close() error                   { return nil }

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}
