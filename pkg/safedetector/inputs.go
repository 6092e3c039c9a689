package safedetector

import (
	"errors"
	"fmt"

	"github.com/ghalamif/SafeDetector/internal/adapters/bus"
	"github.com/ghalamif/SafeDetector/internal/domain"
)

// ErrSensorIndex is returned when a distance sample targets a sensor slot
// that was not configured.
var ErrSensorIndex = errors.New("safedetector: distance sensor index out of range")

// Inputs publishes arm state and distance samples straight onto the detector's
// input streams. It is safe for concurrent use.
type Inputs struct {
	inputs *bus.Inputs
	clock  Clock
}

// PublishVehicleStatus publishes a full vehicle status. A zero timestamp is
// replaced with the current monotonic time.
func (in *Inputs) PublishVehicleStatus(vs VehicleStatus) {
	if vs.Timestamp == 0 {
		vs.Timestamp = in.clock.NowMicros()
	}
	in.inputs.VehicleStatus.Publish(vs)
}

// PublishArmingState is shorthand for PublishVehicleStatus with the current time.
func (in *Inputs) PublishArmingState(state ArmingState) {
	in.PublishVehicleStatus(domain.VehicleStatus{ArmingState: state})
}

// PublishDistance publishes a reading in meters for the given sensor slot.
func (in *Inputs) PublishDistance(sensor int, meters float32) error {
	return in.PublishDistanceSample(sensor, DistanceSample{Distance: meters})
}

// PublishDistanceSample publishes a full sample for the given sensor slot.
func (in *Inputs) PublishDistanceSample(sensor int, s DistanceSample) error {
	if sensor < 0 || sensor >= len(in.inputs.DistanceSensors) {
		return fmt.Errorf("%w: %d (have %d)", ErrSensorIndex, sensor, len(in.inputs.DistanceSensors))
	}
	if s.Timestamp == 0 {
		s.Timestamp = in.clock.NowMicros()
	}
	in.inputs.DistanceSensors[sensor].Publish(s)
	return nil
}

// DistanceSensors returns the number of configured sensor slots.
func (in *Inputs) DistanceSensors() int {
	return len(in.inputs.DistanceSensors)
}
