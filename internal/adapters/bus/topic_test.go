package bus

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/SafeDetector/internal/domain"
)

func TestSubscriptionUpdateOnlyOnFreshData(t *testing.T) {
	topic := NewTopic[domain.DistanceSample]("distance_sensor")
	sub := topic.Subscribe()

	var got domain.DistanceSample
	assert.False(t, sub.Updated())
	assert.False(t, sub.Update(&got))

	topic.Publish(domain.DistanceSample{Distance: 3.5})
	require.True(t, sub.Updated())
	require.True(t, sub.Update(&got))
	assert.Equal(t, float32(3.5), got.Distance)

	got = domain.DistanceSample{Distance: -1}
	assert.False(t, sub.Update(&got), "second read without a publish must not report fresh data")
	assert.Equal(t, float32(-1), got.Distance, "dst must be untouched when nothing is fresh")
}

func TestSubscriptionSeesOnlyLatestValue(t *testing.T) {
	topic := NewTopic[domain.VehicleStatus]("vehicle_status")
	sub := topic.Subscribe()

	topic.Publish(domain.VehicleStatus{ArmingState: domain.ArmingStateStandby})
	topic.Publish(domain.VehicleStatus{ArmingState: domain.ArmingStateArmed})

	var got domain.VehicleStatus
	require.True(t, sub.Update(&got))
	assert.True(t, got.Armed())
	assert.False(t, sub.Update(&got))
}

func TestSubscribeSkipsEarlierPublishes(t *testing.T) {
	topic := NewTopic[domain.ParameterUpdate]("parameter_update")
	topic.Publish(domain.ParameterUpdate{Timestamp: 1})

	sub := topic.Subscribe()
	assert.False(t, sub.Updated())

	var got domain.ParameterUpdate
	assert.False(t, sub.Update(&got), "values published before Subscribe are not fresh")

	topic.Publish(domain.ParameterUpdate{Timestamp: 2})
	require.True(t, sub.Update(&got))
	assert.Equal(t, uint64(2), got.Timestamp)
}

func TestTopicConcurrentPublishers(t *testing.T) {
	topic := NewTopic[domain.DistanceSample]("distance_sensor")
	sub := topic.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				topic.Publish(domain.DistanceSample{Distance: float32(i)})
			}
		}(i)
	}
	wg.Wait()

	var got domain.DistanceSample
	require.True(t, sub.Update(&got))
	assert.Equal(t, uint64(800), topic.generation())
}

func TestInputsWiring(t *testing.T) {
	in := NewInputs(3)
	pubs := in.Publishers()
	subs := in.DistanceSubscriptions()
	require.Len(t, pubs.DistanceSensors, 3)
	require.Len(t, subs, 3)
	for i, topic := range in.DistanceSensors {
		assert.Equal(t, fmt.Sprintf("distance_sensor.%d", i), topic.Name())
	}

	pubs.DistanceSensors[2].Publish(domain.DistanceSample{Distance: 9})

	var got domain.DistanceSample
	assert.False(t, subs[0].Update(&got))
	assert.False(t, subs[1].Update(&got))
	require.True(t, subs[2].Update(&got))
	assert.Equal(t, float32(9), got.Distance)
}
