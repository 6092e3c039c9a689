package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/SafeDetector/internal/adapters/bus"
	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

func newTestInputs(sensors int) (*bus.Inputs, ports.Subscription[domain.VehicleStatus], []ports.Subscription[domain.DistanceSample]) {
	in := bus.NewInputs(sensors)
	return in, in.VehicleStatus.Subscribe(), in.DistanceSubscriptions()
}

func TestStateStartsZeroed(t *testing.T) {
	s := NewState()
	assert.False(t, s.Armed)
	assert.Zero(t, s.Distance)
	assert.False(t, s.HasArmed)
	assert.False(t, s.HasDistance)
	assert.Equal(t, -1, s.DistanceSource)
	assert.True(t, Decide(s.Armed, s.Distance), "an unsampled cache must decide safe")
}

func TestAggregateLastFreshSourceWins(t *testing.T) {
	in, vehicle, distances := newTestInputs(2)
	s := NewState()

	in.VehicleStatus.Publish(domain.VehicleStatus{ArmingState: domain.ArmingStateArmed})
	in.DistanceSensors[0].Publish(domain.DistanceSample{Distance: 2.0})
	in.DistanceSensors[1].Publish(domain.DistanceSample{Distance: 9.0})

	s.Aggregate(vehicle, distances)

	require.True(t, s.Armed)
	assert.Equal(t, float32(9.0), s.Distance)
	assert.Equal(t, 1, s.DistanceSource)
	assert.False(t, Decide(s.Armed, s.Distance))
}

func TestAggregateOrderNotTimestamp(t *testing.T) {
	in, vehicle, distances := newTestInputs(2)
	s := NewState()

	in.DistanceSensors[1].Publish(domain.DistanceSample{Timestamp: 10, Distance: 1.0})
	in.DistanceSensors[0].Publish(domain.DistanceSample{Timestamp: 20, Distance: 8.0})

	s.Aggregate(vehicle, distances)
	assert.Equal(t, float32(1.0), s.Distance, "iteration order decides, not sample age")
}

func TestAggregateEarlierSourceWhenLaterIsStale(t *testing.T) {
	in, vehicle, distances := newTestInputs(2)
	s := NewState()

	in.DistanceSensors[1].Publish(domain.DistanceSample{Distance: 9.0})
	s.Aggregate(vehicle, distances)
	require.Equal(t, float32(9.0), s.Distance)

	in.DistanceSensors[0].Publish(domain.DistanceSample{Distance: 2.0})
	s.Aggregate(vehicle, distances)
	assert.Equal(t, float32(2.0), s.Distance)
	assert.Equal(t, 0, s.DistanceSource)
}

func TestAggregateKeepsStaleValues(t *testing.T) {
	in, vehicle, distances := newTestInputs(1)
	s := NewState()

	in.VehicleStatus.Publish(domain.VehicleStatus{ArmingState: domain.ArmingStateArmed})
	in.DistanceSensors[0].Publish(domain.DistanceSample{Distance: 6.5})
	s.Aggregate(vehicle, distances)
	before := s

	for i := 0; i < 5; i++ {
		s.Aggregate(vehicle, distances)
		assert.Equal(t, before, s)
	}
}

func TestAggregateDisarmOverwritesArmed(t *testing.T) {
	in, vehicle, distances := newTestInputs(1)
	s := NewState()

	in.VehicleStatus.Publish(domain.VehicleStatus{ArmingState: domain.ArmingStateArmed})
	s.Aggregate(vehicle, distances)
	require.True(t, s.Armed)

	in.VehicleStatus.Publish(domain.VehicleStatus{ArmingState: domain.ArmingStateStandby})
	s.Aggregate(vehicle, distances)
	assert.False(t, s.Armed)
	assert.True(t, s.HasArmed)
	assert.False(t, s.HasDistance)
}
