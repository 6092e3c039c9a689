package natsio

import (
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/ghalamif/SafeDetector/internal/adapters/bus"
	"github.com/ghalamif/SafeDetector/internal/domain"
)

func newTestCollector(sensors int) (*Collector, *bus.Inputs) {
	in := bus.NewInputs(sensors)
	c := NewCollector(nil, CollectorConfig{}, nil)
	c.in = in.Publishers()
	return c, in
}

func TestHandleVehicleStatus(t *testing.T) {
	c, in := newTestCollector(1)
	sub := in.VehicleStatus.Subscribe()

	tests := []struct {
		payload string
		armed   bool
		fresh   bool
	}{
		{`{"timestamp":10,"arming_state":2}`, true, true},
		{`{"armed":false}`, false, true},
		{`{"armed":true}`, true, true},
		{`{"timestamp":11}`, false, false},
		{`not json`, false, false},
	}

	for _, tt := range tests {
		c.handleVehicleStatus(&nats.Msg{Subject: "vehicle_status", Data: []byte(tt.payload)})
		var got domain.VehicleStatus
		fresh := sub.Update(&got)
		if fresh != tt.fresh {
			t.Fatalf("payload %s: fresh=%v, want %v", tt.payload, fresh, tt.fresh)
		}
		if fresh && got.Armed() != tt.armed {
			t.Fatalf("payload %s: armed=%v, want %v", tt.payload, got.Armed(), tt.armed)
		}
	}
}

func TestHandleDistanceRoutesBySubjectIndex(t *testing.T) {
	c, in := newTestCollector(2)
	subs := in.DistanceSubscriptions()

	c.handleDistance(&nats.Msg{Subject: "distance_sensor.1", Data: []byte(`{"current_distance":7.5}`)})

	var got domain.DistanceSample
	if subs[0].Update(&got) {
		t.Fatalf("sensor 0 should not receive data")
	}
	if !subs[1].Update(&got) || got.Distance != 7.5 {
		t.Fatalf("expected sensor 1 to receive 7.5, got %+v", got)
	}
}

func TestHandleDistanceIgnoresBadMessages(t *testing.T) {
	c, in := newTestCollector(1)
	sub := in.DistanceSensors[0].Subscribe()

	c.handleDistance(&nats.Msg{Subject: "distance_sensor.5", Data: []byte(`{"current_distance":1}`)})
	c.handleDistance(&nats.Msg{Subject: "distance_sensor.x", Data: []byte(`{"current_distance":1}`)})
	c.handleDistance(&nats.Msg{Subject: "distance_sensor.0", Data: []byte(`{`)})

	if sub.Updated() {
		t.Fatalf("invalid messages must not reach the topic")
	}
}

func TestCollectorStopBeforeStart(t *testing.T) {
	c := NewCollector(nil, CollectorConfig{}, nil)
	if err := c.Stop(); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	if c.cfg.VehicleStatusSubject != "vehicle_status" || c.cfg.DistanceSubjectPrefix != "distance_sensor" {
		t.Fatalf("defaults not applied: %+v", c.cfg)
	}
}
