package bus

import (
	"fmt"
	"sync"

	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// Topic holds the most recent value published on a stream. Every Publish bumps
// a generation counter that subscriptions use to detect fresh data.
type Topic[T any] struct {
	name string

	mu  sync.RWMutex
	gen uint64
	val T
}

func NewTopic[T any](name string) *Topic[T] {
	return &Topic[T]{name: name}
}

func (t *Topic[T]) Name() string { return t.name }

func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	t.val = v
	t.gen++
	t.mu.Unlock()
}

// Subscribe returns a subscription that sees only values published after this call.
func (t *Topic[T]) Subscribe() *Subscription[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Subscription[T]{topic: t, lastGen: t.gen}
}

func (t *Topic[T]) load() (T, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.val, t.gen
}

func (t *Topic[T]) generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.gen
}

// Subscription is owned by a single reader and is not safe for concurrent use.
type Subscription[T any] struct {
	topic   *Topic[T]
	lastGen uint64
}

func (s *Subscription[T]) Updated() bool {
	return s.topic.generation() != s.lastGen
}

func (s *Subscription[T]) Update(dst *T) bool {
	v, gen := s.topic.load()
	if gen == s.lastGen {
		return false
	}
	*dst = v
	s.lastGen = gen
	return true
}

// Inputs groups the topics the detector reads.
type Inputs struct {
	VehicleStatus   *Topic[domain.VehicleStatus]
	DistanceSensors []*Topic[domain.DistanceSample]
	ParameterUpdate *Topic[domain.ParameterUpdate]
}

func NewInputs(distanceSensors int) *Inputs {
	in := &Inputs{
		VehicleStatus:   NewTopic[domain.VehicleStatus]("vehicle_status"),
		DistanceSensors: make([]*Topic[domain.DistanceSample], distanceSensors),
		ParameterUpdate: NewTopic[domain.ParameterUpdate]("parameter_update"),
	}
	for i := range in.DistanceSensors {
		in.DistanceSensors[i] = NewTopic[domain.DistanceSample](fmt.Sprintf("distance_sensor.%d", i))
	}
	return in
}

// Publishers exposes the input topics to collectors.
func (in *Inputs) Publishers() ports.InputPublishers {
	pubs := ports.InputPublishers{
		VehicleStatus:   in.VehicleStatus,
		DistanceSensors: make([]ports.Publisher[domain.DistanceSample], len(in.DistanceSensors)),
	}
	for i, t := range in.DistanceSensors {
		pubs.DistanceSensors[i] = t
	}
	return pubs
}

// DistanceSubscriptions subscribes to every distance topic in instance order.
func (in *Inputs) DistanceSubscriptions() []ports.Subscription[domain.DistanceSample] {
	subs := make([]ports.Subscription[domain.DistanceSample], len(in.DistanceSensors))
	for i, t := range in.DistanceSensors {
		subs[i] = t.Subscribe()
	}
	return subs
}

var (
	_ ports.Subscription[domain.VehicleStatus] = (*Subscription[domain.VehicleStatus])(nil)
	_ ports.Publisher[domain.SafetyStatus]     = (*Topic[domain.SafetyStatus])(nil)
)
