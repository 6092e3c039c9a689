package safedetector

import (
	"github.com/ghalamif/SafeDetector/internal/adapters/opcua"
	"github.com/ghalamif/SafeDetector/internal/app/config"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// DetectorConfig sets the tick interval and number of rangefinders.
	DetectorConfig = config.DetectorConfig
	// LogConfig selects the slog level and handler format.
	LogConfig = config.LogConfig
	// Policy controls the egress queue.
	Policy = ports.Policy
	// SourcesConfig enables the OPC UA and NATS collectors.
	SourcesConfig = config.SourcesConfig
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps a node onto an input stream.
	OPCUANodeConfig = opcua.NodeConfig
	// SinksConfig enables the Timescale, NATS and websocket sinks.
	SinksConfig = config.SinksConfig
	// TimescaleConfig configures the SQL sink.
	TimescaleConfig = config.TimescaleConfig
	// JournalConfig configures the on-disk status journal.
	JournalConfig = config.JournalConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
