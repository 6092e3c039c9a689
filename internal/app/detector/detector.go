package detector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// DefaultInterval gives a 200 Hz tick rate.
const DefaultInterval = 5 * time.Millisecond

var (
	// ErrMissingDependency is returned by New when a required collaborator is absent.
	ErrMissingDependency = errors.New("detector: missing dependency")
	// ErrStopped is returned by Run once the detector has released its resources.
	ErrStopped = errors.New("detector: stopped")
	// ErrAlreadyRunning is returned by Run when another Run is active.
	ErrAlreadyRunning = errors.New("detector: already running")
)

type RunState int32

const (
	Stopped RunState = iota
	Running
)

func (s RunState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Deps are the collaborators of a Detector. ParamUpdates, Reloader and Clock
// are optional.
type Deps struct {
	VehicleStatus   ports.Subscription[domain.VehicleStatus]
	DistanceSensors []ports.Subscription[domain.DistanceSample]
	ParamUpdates    ports.Subscription[domain.ParameterUpdate]
	Reloader        ports.ParamReloader
	Publisher       ports.StatusPublisher
	Clock           ports.Clock
	Obs             ports.Observability
}

// Detector runs the aggregate → decide → publish pipeline once per tick.
type Detector struct {
	interval  time.Duration
	vehicle   ports.Subscription[domain.VehicleStatus]
	distances []ports.Subscription[domain.DistanceSample]
	params    ports.Subscription[domain.ParameterUpdate]
	reloader  ports.ParamReloader
	publisher ports.StatusPublisher
	clock     ports.Clock
	obs       ports.Observability

	state    State
	lastTick time.Time
	lastFlag bool
	ticked   bool

	runState atomic.Int32
	released atomic.Bool
}

func New(interval time.Duration, deps Deps) (*Detector, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("detector: interval must be > 0, got %s", interval)
	}
	switch {
	case deps.VehicleStatus == nil:
		return nil, fmt.Errorf("%w: vehicle status subscription", ErrMissingDependency)
	case len(deps.DistanceSensors) == 0:
		return nil, fmt.Errorf("%w: distance sensor subscriptions", ErrMissingDependency)
	case deps.Publisher == nil:
		return nil, fmt.Errorf("%w: status publisher", ErrMissingDependency)
	case deps.Obs == nil:
		return nil, fmt.Errorf("%w: observability", ErrMissingDependency)
	}
	for i, sub := range deps.DistanceSensors {
		if sub == nil {
			return nil, fmt.Errorf("%w: distance sensor %d", ErrMissingDependency, i)
		}
	}

	clock := deps.Clock
	if clock == nil {
		clock = NewMonotonicClock()
	}

	return &Detector{
		interval:  interval,
		vehicle:   deps.VehicleStatus,
		distances: deps.DistanceSensors,
		params:    deps.ParamUpdates,
		reloader:  deps.Reloader,
		publisher: deps.Publisher,
		clock:     clock,
		obs:       deps.Obs,
		state:     NewState(),
	}, nil
}

func (d *Detector) State() RunState {
	return RunState(d.runState.Load())
}

// Cache returns a copy of the input cache. Only call it from the goroutine
// driving Tick or after Run has returned.
func (d *Detector) Cache() State {
	return d.state
}

// Run ticks at the configured interval until ctx is cancelled. On cancellation
// the pending tick is skipped and instrumentation is released before Run
// returns; a stopped detector cannot be restarted.
func (d *Detector) Run(ctx context.Context) error {
	if d.released.Load() {
		return ErrStopped
	}
	if !d.runState.CompareAndSwap(int32(Stopped), int32(Running)) {
		return ErrAlreadyRunning
	}

	ticker := time.NewTicker(d.interval)
	d.obs.SetGauge("safedetector_running", 1)
	d.obs.LogInfo("detector_started",
		ports.Field{Key: "interval", Value: d.interval.String()},
		ports.Field{Key: "distance_sensors", Value: len(d.distances)})

	for {
		select {
		case <-ctx.Done():
			return d.stop(ticker)
		case <-ticker.C:
			if ctx.Err() != nil {
				return d.stop(ticker)
			}
			d.Tick()
		}
	}
}

func (d *Detector) stop(ticker *time.Ticker) error {
	ticker.Stop()
	d.obs.SetGauge("safedetector_running", 0)
	d.obs.LogInfo("detector_stopped")
	err := d.obs.Close()
	d.released.Store(true)
	d.runState.Store(int32(Stopped))
	return err
}

// Tick runs one full pipeline pass and returns the published status.
func (d *Detector) Tick() domain.SafetyStatus {
	start := time.Now()
	if !d.lastTick.IsZero() {
		d.obs.ObserveLatency("safedetector_loop_interval_seconds", start.Sub(d.lastTick).Seconds())
	}
	d.lastTick = start

	status := domain.SafetyStatus{Timestamp: d.clock.NowMicros()}

	d.checkParams()
	d.state.Aggregate(d.vehicle, d.distances)
	status.Flag = Decide(d.state.Armed, d.state.Distance)

	d.publisher.Publish(status)
	d.record(status)

	d.obs.ObserveLatency("safedetector_loop_duration_seconds", time.Since(start).Seconds())
	return status
}

func (d *Detector) checkParams() {
	if d.params == nil || !d.params.Updated() {
		return
	}
	var update domain.ParameterUpdate
	d.params.Update(&update)
	if d.reloader == nil {
		return
	}
	if err := d.reloader.ReloadParams(); err != nil {
		d.obs.LogError("param_reload_failed", err)
		return
	}
	d.obs.IncCounter("safedetector_param_reloads_total", 1)
}

func (d *Detector) record(status domain.SafetyStatus) {
	d.obs.IncCounter("safedetector_ticks_total", 1)
	if !status.Flag {
		d.obs.IncCounter("safedetector_unsafe_ticks_total", 1)
	}
	d.obs.SetGauge("safedetector_safe", boolToFloat(status.Flag))
	d.obs.SetGauge("safedetector_armed", boolToFloat(d.state.Armed))
	d.obs.SetGauge("safedetector_distance_meters", float64(d.state.Distance))

	if d.ticked && d.lastFlag == status.Flag {
		return
	}
	d.ticked = true
	d.lastFlag = status.Flag
	d.obs.LogInfo("safety_flag_changed",
		ports.Field{Key: "safe", Value: status.Flag},
		ports.Field{Key: "armed", Value: d.state.Armed},
		ports.Field{Key: "distance", Value: d.state.Distance},
		ports.Field{Key: "distance_source", Value: d.state.DistanceSource},
		ports.Field{Key: "armed_seen", Value: d.state.HasArmed},
		ports.Field{Key: "distance_seen", Value: d.state.HasDistance})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type monotonicClock struct {
	epoch time.Time
}

// NewMonotonicClock counts microseconds from its creation using the runtime's
// monotonic clock reading.
func NewMonotonicClock() ports.Clock {
	return monotonicClock{epoch: time.Now()}
}

func (c monotonicClock) NowMicros() uint64 {
	return uint64(time.Since(c.epoch).Microseconds())
}
