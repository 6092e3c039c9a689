package safedetector

import (
	"github.com/ghalamif/SafeDetector/internal/app/detector"
	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// SafetyStatus is the record published on every tick.
type SafetyStatus = domain.SafetyStatus

// VehicleStatus carries the arming state.
type VehicleStatus = domain.VehicleStatus

// ArmingState enumerates the vehicle arming states.
type ArmingState = domain.ArmingState

// DistanceSample is a rangefinder reading in meters.
type DistanceSample = domain.DistanceSample

// Collector feeds the arm-state and distance streams from any source (OPC UA, NATS, simulators, etc.).
type Collector = ports.Collector

// InputPublishers are the streams handed to a Collector on Start.
type InputPublishers = ports.InputPublishers

// Sink consumes batches of statuses and forwards them to any downstream system.
type Sink = ports.Sink

// StatusQueue is the bounded queue between the detector and the sinks.
type StatusQueue = ports.StatusQueue

// Observability emits metrics/logs about the detector loop and egress.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Clock supplies the monotonic microsecond timestamps stamped on statuses.
type Clock = ports.Clock

// StatusSubscription reads the in-process status stream without blocking.
type StatusSubscription = ports.Subscription[domain.SafetyStatus]

// RunState reports whether the detector is ticking.
type RunState = detector.RunState

const (
	ArmingStateInit         = domain.ArmingStateInit
	ArmingStateStandby      = domain.ArmingStateStandby
	ArmingStateArmed        = domain.ArmingStateArmed
	ArmingStateStandbyError = domain.ArmingStateStandbyError
	ArmingStateShutdown     = domain.ArmingStateShutdown
	ArmingStateInAirRestore = domain.ArmingStateInAirRestore

	Running = detector.Running
	Stopped = detector.Stopped

	// DistanceThreshold is the height in meters above which an armed vehicle is unsafe.
	DistanceThreshold = detector.DistanceThreshold
)
