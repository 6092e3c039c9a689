package safedetector

import (
	base "github.com/ghalamif/SafeDetector/pkg/safedetector"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrSensorIndex       = base.ErrSensorIndex
	ErrRuntimeStarted    = base.ErrRuntimeStarted
	ErrRuntimeStopped    = base.ErrRuntimeStopped
)

// Type aliases so consumers can import github.com/ghalamif/SafeDetector directly.
type (
	Config             = base.Config
	DetectorConfig     = base.DetectorConfig
	LogConfig          = base.LogConfig
	Policy             = base.Policy
	SourcesConfig      = base.SourcesConfig
	OPCUAConfig        = base.OPCUAConfig
	OPCUANodeConfig    = base.OPCUANodeConfig
	SinksConfig        = base.SinksConfig
	TimescaleConfig    = base.TimescaleConfig
	JournalConfig      = base.JournalConfig
	MetricsConfig      = base.MetricsConfig
	Flow               = base.Flow
	FlowOption         = base.FlowOption
	StreamInOption     = base.StreamInOption
	StreamOutOption    = base.StreamOutOption
	Runtime            = base.Runtime
	RuntimeOption      = base.RuntimeOption
	Inputs             = base.Inputs
	SafetyStatus       = base.SafetyStatus
	VehicleStatus      = base.VehicleStatus
	ArmingState        = base.ArmingState
	DistanceSample     = base.DistanceSample
	StatusBatchHandler = base.StatusBatchHandler
	StatusSubscription = base.StatusSubscription
	Collector          = base.Collector
	InputPublishers    = base.InputPublishers
	Sink               = base.Sink
	StatusQueue        = base.StatusQueue
	Observability      = base.Observability
	Field              = base.Field
	Clock              = base.Clock
	RunState           = base.RunState
)

const (
	ArmingStateInit         = base.ArmingStateInit
	ArmingStateStandby      = base.ArmingStateStandby
	ArmingStateArmed        = base.ArmingStateArmed
	ArmingStateStandbyError = base.ArmingStateStandbyError
	ArmingStateShutdown     = base.ArmingStateShutdown
	ArmingStateInAirRestore = base.ArmingStateInAirRestore

	Running = base.Running
	Stopped = base.Stopped

	DistanceThreshold = base.DistanceThreshold
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInClock(c Clock) StreamInOption {
	return base.StreamInClock(c)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutQueue(q StatusQueue) StreamOutOption {
	return base.StreamOutQueue(q)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn StatusBatchHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithStatusQueue(q StatusQueue) RuntimeOption {
	return base.WithStatusQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithClock(c Clock) RuntimeOption {
	return base.WithClock(c)
}

func WithConfigPath(path string) RuntimeOption {
	return base.WithConfigPath(path)
}

func WithoutMetricsServer() RuntimeOption {
	return base.WithoutMetricsServer()
}

// Sink adapters.
func NewCallbackSink(name string, fn StatusBatchHandler) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []SafetyStatus, func()) {
	return base.NewChannelSink(name, buffer)
}
