package detector

import (
	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// State is the input cache carried across ticks. It is owned by the goroutine
// driving the detector and mutated in place; the zero value is the startup state.
//
// HasArmed and HasDistance record whether a sample was ever observed. They are
// reported but do not take part in the decision: an unseen input still reads
// as disarmed / zero distance.
type State struct {
	Armed    bool
	Distance float32

	HasArmed       bool
	HasDistance    bool
	DistanceSource int
}

func NewState() State {
	return State{DistanceSource: -1}
}

// Aggregate pulls fresh samples into the cache. Distance sources are visited in
// slice order and every fresh value overwrites the previous one, so the last
// source with fresh data in this call wins.
func (s *State) Aggregate(vehicle ports.Subscription[domain.VehicleStatus], distances []ports.Subscription[domain.DistanceSample]) {
	var vs domain.VehicleStatus
	if vehicle != nil && vehicle.Update(&vs) {
		s.Armed = vs.Armed()
		s.HasArmed = true
	}

	var ds domain.DistanceSample
	for i, sub := range distances {
		if sub == nil {
			continue
		}
		if sub.Update(&ds) {
			s.Distance = ds.Distance
			s.HasDistance = true
			s.DistanceSource = i
		}
	}
}
