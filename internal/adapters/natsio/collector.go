package natsio

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// CollectorConfig names the subjects carrying vehicle status and rangefinder
// samples. Distance samples for sensor i arrive on "<prefix>.<i>".
type CollectorConfig struct {
	VehicleStatusSubject  string `yaml:"vehicle_status_subject"`
	DistanceSubjectPrefix string `yaml:"distance_subject_prefix"`
}

func (c *CollectorConfig) ApplyDefaults() {
	if c.VehicleStatusSubject == "" {
		c.VehicleStatusSubject = "vehicle_status"
	}
	if c.DistanceSubjectPrefix == "" {
		c.DistanceSubjectPrefix = "distance_sensor"
	}
}

// MsgSubscriber is the subset of *nats.Conn used by Collector.
type MsgSubscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Collector feeds the input streams from NATS messages.
type Collector struct {
	conn   MsgSubscriber
	cfg    CollectorConfig
	logger *slog.Logger

	mu      sync.Mutex
	in      ports.InputPublishers
	subs    []*nats.Subscription
	started bool
}

func NewCollector(conn MsgSubscriber, cfg CollectorConfig, logger *slog.Logger) *Collector {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{conn: conn, cfg: cfg, logger: logger}
}

func (c *Collector) Start(in ports.InputPublishers) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("nats collector already started")
	}
	c.in = in

	vs, err := c.conn.Subscribe(c.cfg.VehicleStatusSubject, c.handleVehicleStatus)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.VehicleStatusSubject, err)
	}
	dist, err := c.conn.Subscribe(c.cfg.DistanceSubjectPrefix+".*", c.handleDistance)
	if err != nil {
		_ = vs.Unsubscribe()
		return fmt.Errorf("subscribe %s.*: %w", c.cfg.DistanceSubjectPrefix, err)
	}

	c.subs = []*nats.Subscription{vs, dist}
	c.started = true
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	var errs []error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	c.subs = nil
	c.started = false
	return errors.Join(errs...)
}

type vehicleStatusMsg struct {
	Timestamp   uint64 `json:"timestamp"`
	ArmingState *uint8 `json:"arming_state"`
	Armed       *bool  `json:"armed"`
}

func (c *Collector) handleVehicleStatus(msg *nats.Msg) {
	var m vehicleStatusMsg
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		c.logger.Warn("nats_vehicle_status_invalid", slog.String("subject", msg.Subject), slog.Any("error", err))
		return
	}

	status := domain.VehicleStatus{Timestamp: m.Timestamp}
	switch {
	case m.ArmingState != nil:
		status.ArmingState = domain.ArmingState(*m.ArmingState)
	case m.Armed != nil && *m.Armed:
		status.ArmingState = domain.ArmingStateArmed
	case m.Armed != nil:
		status.ArmingState = domain.ArmingStateStandby
	default:
		c.logger.Warn("nats_vehicle_status_invalid", slog.String("subject", msg.Subject), slog.String("reason", "no arming state"))
		return
	}

	c.mu.Lock()
	pub := c.in.VehicleStatus
	c.mu.Unlock()
	if pub != nil {
		pub.Publish(status)
	}
}

func (c *Collector) handleDistance(msg *nats.Msg) {
	idx, err := strconv.Atoi(strings.TrimPrefix(msg.Subject, c.cfg.DistanceSubjectPrefix+"."))
	if err != nil {
		c.logger.Warn("nats_distance_subject_invalid", slog.String("subject", msg.Subject))
		return
	}

	var sample domain.DistanceSample
	if err := json.Unmarshal(msg.Data, &sample); err != nil {
		c.logger.Warn("nats_distance_invalid", slog.String("subject", msg.Subject), slog.Any("error", err))
		return
	}

	c.mu.Lock()
	sensors := c.in.DistanceSensors
	c.mu.Unlock()
	if idx < 0 || idx >= len(sensors) {
		c.logger.Warn("nats_distance_sensor_out_of_range", slog.Int("index", idx), slog.Int("sensors", len(sensors)))
		return
	}
	sensors[idx].Publish(sample)
}

var _ ports.Collector = (*Collector)(nil)
