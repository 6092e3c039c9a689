package domain

// ArmingState mirrors the arming states reported on the vehicle status stream.
type ArmingState uint8

const (
	ArmingStateInit ArmingState = iota
	ArmingStateStandby
	ArmingStateArmed
	ArmingStateStandbyError
	ArmingStateShutdown
	ArmingStateInAirRestore
)

var armingStateNames = map[ArmingState]string{
	ArmingStateInit:         "init",
	ArmingStateStandby:      "standby",
	ArmingStateArmed:        "armed",
	ArmingStateStandbyError: "standby_error",
	ArmingStateShutdown:     "shutdown",
	ArmingStateInAirRestore: "in_air_restore",
}

func (s ArmingState) String() string {
	if name, ok := armingStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseArmingState accepts the names returned by String.
func ParseArmingState(name string) (ArmingState, bool) {
	for state, n := range armingStateNames {
		if n == name {
			return state, true
		}
	}
	return 0, false
}

// VehicleStatus is the arm-state record consumed by the detector.
type VehicleStatus struct {
	Timestamp   uint64      `json:"timestamp"`
	ArmingState ArmingState `json:"arming_state"`
}

// Armed reports whether the motors are active.
func (v VehicleStatus) Armed() bool {
	return v.ArmingState == ArmingStateArmed
}

// DistanceSample is a single rangefinder reading in meters.
type DistanceSample struct {
	Timestamp uint64  `json:"timestamp"`
	Distance  float32 `json:"current_distance"`
	SensorID  string  `json:"sensor_id,omitempty"`
}

// SafetyStatus is published once per tick. Flag is true when the vehicle is
// considered safe.
type SafetyStatus struct {
	Timestamp uint64 `json:"timestamp"`
	Flag      bool   `json:"flag"`
}

// ParameterUpdate signals that module parameters should be reloaded.
type ParameterUpdate struct {
	Timestamp uint64 `json:"timestamp"`
}
