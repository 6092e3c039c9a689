package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
policy:
  max_queue_len: 1000
sources:
  opcua:
    endpoint: opc.tcp://localhost:4840
    nodes:
      - node_id: "ns=2;s=Lidar.Down"
        sensor_index: 1
sinks:
  nats:
    url: nats://localhost:4222
  websocket: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Detector.Interval != 5*time.Millisecond {
		t.Fatalf("expected Interval default 5ms, got %s", cfg.Detector.Interval)
	}
	if cfg.Detector.DistanceSensors != 4 {
		t.Fatalf("expected 4 distance sensors by default, got %d", cfg.Detector.DistanceSensors)
	}
	if cfg.Policy.MaxQueueLen != 1000 {
		t.Fatalf("expected MaxQueueLen from file, got %d", cfg.Policy.MaxQueueLen)
	}
	if cfg.Policy.MaxBatchSize != 64 {
		t.Fatalf("expected MaxBatchSize default 64, got %d", cfg.Policy.MaxBatchSize)
	}
	if cfg.Policy.OnQueueFull != "drop_oldest" {
		t.Fatalf("expected on_queue_full default drop_oldest, got %s", cfg.Policy.OnQueueFull)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.Sources.OPCUA.Nodes[0].Role != "distance" {
		t.Fatalf("expected node role fallback to distance, got %s", cfg.Sources.OPCUA.Nodes[0].Role)
	}
	if cfg.Sinks.NATS.Subject != "safe_detector" || cfg.Sinks.NATS.Name != "safe-detector" {
		t.Fatalf("unexpected nats sink defaults: %+v", cfg.Sinks.NATS)
	}
	if cfg.Sinks.WebSocket.Path != "/ws" {
		t.Fatalf("expected websocket path /ws, got %s", cfg.Sinks.WebSocket.Path)
	}
	if cfg.Sinks.Timescale != nil || cfg.Sources.NATS != nil {
		t.Fatalf("unset sections must stay disabled")
	}
}

func TestLoadParsesDurationsAndNATSSource(t *testing.T) {
	path := writeConfig(t, `
detector:
  interval: 10ms
  distance_sensors: 2
log:
  level: debug
  format: json
sources:
  nats:
    url: nats://broker:4222
    distance_subject_prefix: px4.distance
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Detector.Interval != 10*time.Millisecond {
		t.Fatalf("expected 10ms interval, got %s", cfg.Detector.Interval)
	}
	if cfg.Sources.NATS.URL != "nats://broker:4222" {
		t.Fatalf("expected inline url, got %q", cfg.Sources.NATS.URL)
	}
	if cfg.Sources.NATS.DistanceSubjectPrefix != "px4.distance" || cfg.Sources.NATS.VehicleStatusSubject != "vehicle_status" {
		t.Fatalf("unexpected nats subjects: %+v", cfg.Sources.NATS.CollectorConfig)
	}
	lvl, err := ParseLevel(cfg.Log.Level)
	if err != nil || lvl != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v (%v)", lvl, err)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"sensors":      "detector:\n  distance_sensors: 17\n",
		"queue policy": "policy:\n  on_queue_full: block\n",
		"log level":    "log:\n  level: loud\n",
		"log format":   "log:\n  format: xml\n",
		"timescale":    "sinks:\n  timescale:\n    table: x\n",
		"nats source":  "sources:\n  nats: {}\n",
		"journal":      "sinks:\n  journal: {}\n",
		"opcua index": `
detector:
  distance_sensors: 1
sources:
  opcua:
    endpoint: opc.tcp://localhost:4840
    nodes:
      - node_id: a
        sensor_index: 1
`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, data)); err == nil {
				t.Fatalf("expected %s config to be rejected", name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected missing file error, got %v", err)
	}
}
