package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/SafeDetector/internal/adapters/natsio"
	"github.com/ghalamif/SafeDetector/internal/adapters/opcua"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// MaxDistanceSensors bounds the number of rangefinder channels.
const MaxDistanceSensors = 16

type Config struct {
	Detector DetectorConfig `yaml:"detector"`
	Log      LogConfig      `yaml:"log"`
	Policy   ports.Policy   `yaml:"policy"`
	Sources  SourcesConfig  `yaml:"sources"`
	Sinks    SinksConfig    `yaml:"sinks"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type DetectorConfig struct {
	Interval        time.Duration `yaml:"interval"`
	DistanceSensors int           `yaml:"distance_sensors"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SourcesConfig struct {
	OPCUA *opcua.Config     `yaml:"opcua"`
	NATS  *NATSSourceConfig `yaml:"nats"`
}

type NATSSourceConfig struct {
	natsio.Config          `yaml:",inline"`
	natsio.CollectorConfig `yaml:",inline"`
}

type SinksConfig struct {
	Timescale *TimescaleConfig `yaml:"timescale"`
	NATS      *NATSSinkConfig  `yaml:"nats"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Journal   *JournalConfig   `yaml:"journal"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type NATSSinkConfig struct {
	natsio.Config `yaml:",inline"`
	Subject       string `yaml:"subject"`
}

type WebSocketConfig struct {
	Path string `yaml:"path"`
}

// JournalConfig enables the on-disk flight log of published statuses.
type JournalConfig struct {
	Dir string `yaml:"dir"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Detector.Interval == 0 {
		c.Detector.Interval = 5 * time.Millisecond
	}
	if c.Detector.DistanceSensors == 0 {
		c.Detector.DistanceSensors = 4
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 1_024
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 64
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop_oldest"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}

	if c.Sources.OPCUA != nil {
		c.Sources.OPCUA.ApplyDefaults()
	}
	if c.Sources.NATS != nil {
		c.Sources.NATS.Config.ApplyDefaults()
		c.Sources.NATS.CollectorConfig.ApplyDefaults()
	}
	if c.Sinks.Timescale != nil && c.Sinks.Timescale.Table == "" {
		c.Sinks.Timescale.Table = "safety_status"
	}
	if c.Sinks.NATS != nil {
		c.Sinks.NATS.Config.ApplyDefaults()
		if c.Sinks.NATS.Subject == "" {
			c.Sinks.NATS.Subject = "safe_detector"
		}
	}
	if c.Sinks.WebSocket != nil && c.Sinks.WebSocket.Path == "" {
		c.Sinks.WebSocket.Path = "/ws"
	}
}

func (c *Config) Validate() error {
	if c.Detector.Interval <= 0 {
		return fmt.Errorf("detector.interval must be > 0")
	}
	if c.Detector.DistanceSensors < 1 || c.Detector.DistanceSensors > MaxDistanceSensors {
		return fmt.Errorf("detector.distance_sensors must be between 1 and %d", MaxDistanceSensors)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Policy.MaxQueueLen <= 0 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	switch c.Policy.OnQueueFull {
	case "drop", "drop_oldest":
	default:
		return fmt.Errorf("policy.on_queue_full must be drop or drop_oldest, got %q", c.Policy.OnQueueFull)
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}

	if c.Sources.OPCUA != nil {
		if err := c.Sources.OPCUA.Validate(); err != nil {
			return fmt.Errorf("sources.opcua: %w", err)
		}
		for _, n := range c.Sources.OPCUA.Nodes {
			if n.Role == opcua.RoleDistance && n.SensorIndex >= c.Detector.DistanceSensors {
				return fmt.Errorf("sources.opcua: node %q sensor_index %d exceeds detector.distance_sensors", n.NodeID, n.SensorIndex)
			}
		}
	}
	if c.Sources.NATS != nil && c.Sources.NATS.URL == "" {
		return fmt.Errorf("sources.nats.url is required")
	}
	if c.Sinks.Timescale != nil && c.Sinks.Timescale.ConnString == "" {
		return fmt.Errorf("sinks.timescale.conn_string is required")
	}
	if c.Sinks.NATS != nil && c.Sinks.NATS.URL == "" {
		return fmt.Errorf("sinks.nats.url is required")
	}
	if c.Sinks.Journal != nil && c.Sinks.Journal.Dir == "" {
		return fmt.Errorf("sinks.journal.dir is required")
	}
	if c.Sinks.WebSocket != nil && !strings.HasPrefix(c.Sinks.WebSocket.Path, "/") {
		return fmt.Errorf("sinks.websocket.path must start with /")
	}
	return nil
}

// ParseLevel maps a config level name onto a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the process logger; its level is read from lvl so it can be
// changed on reload.
func NewLogger(cfg LogConfig, lvl *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
