package safedetector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/SafeDetector/internal/adapters/bus"
	"github.com/ghalamif/SafeDetector/internal/adapters/journal"
	"github.com/ghalamif/SafeDetector/internal/adapters/natsio"
	"github.com/ghalamif/SafeDetector/internal/adapters/observability"
	"github.com/ghalamif/SafeDetector/internal/adapters/opcua"
	"github.com/ghalamif/SafeDetector/internal/adapters/queue"
	"github.com/ghalamif/SafeDetector/internal/adapters/sink"
	"github.com/ghalamif/SafeDetector/internal/adapters/websocket"
	"github.com/ghalamif/SafeDetector/internal/app/config"
	"github.com/ghalamif/SafeDetector/internal/app/detector"
	"github.com/ghalamif/SafeDetector/internal/app/pipeline"
	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

var (
	// ErrRuntimeStarted is returned by Start when the runtime is already running.
	ErrRuntimeStarted = errors.New("safedetector: runtime already started")
	// ErrRuntimeStopped is returned by Start after Shutdown.
	ErrRuntimeStopped = errors.New("safedetector: runtime stopped")
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collectors    []Collector
	sinks         []Sink
	queue         StatusQueue
	observability Observability
	clock         Clock
	logger        *slog.Logger
	registry      *prometheus.Registry
	configPath    string
	noMetrics     bool
}

// WithCollector adds a collector next to the ones enabled in the config.
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collectors = append(o.collectors, col)
	}
}

// WithSink adds a sink next to the ones enabled in the config.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sinks = append(o.sinks, s)
	}
}

// WithStatusQueue replaces the bounded in-memory egress queue.
func WithStatusQueue(q StatusQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithClock overrides the monotonic clock used to stamp statuses.
func WithClock(c Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = c
	}
}

// WithLogger sets the logger; by default one is built from the log config.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithRegistry registers metrics on reg and serves it on /metrics instead of
// the global registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithConfigPath enables parameter reloads from the given file.
func WithConfigPath(path string) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.configPath = path
	}
}

// WithoutMetricsServer skips the /metrics HTTP server, for embedding.
func WithoutMetricsServer() RuntimeOption {
	return func(o *runtimeOverrides) {
		o.noMetrics = true
	}
}

// Runtime wires collectors → input bus → detector → status topic + egress
// queue → sinks, and owns their lifecycle.
type Runtime struct {
	cfg        *Config
	configPath string
	id         string
	logger     *slog.Logger
	level      *slog.LevelVar
	clock      Clock
	obs        ports.Observability
	gatherer   prometheus.Gatherer
	noMetrics  bool

	inputs     *bus.Inputs
	statuses   *bus.Topic[domain.SafetyStatus]
	queue      ports.StatusQueue
	collectors []ports.Collector
	sinks      []ports.Sink
	detector   *detector.Detector

	db      *sql.DB
	conns   []*nats.Conn
	hub     *websocket.Hub
	journal *journal.FileJournal

	mu             sync.Mutex
	started        bool
	stopped        bool
	metricsSrv     *http.Server
	cancelDetector context.CancelFunc
	cancelEgress   context.CancelFunc
	detectorDone   chan struct{}
	egressDone     chan struct{}
	detectorErr    error

	// pendingLevel is parsed by Reload and applied by ReloadParams.
	pendingLevel atomic.Pointer[slog.Level]
}

// NewRuntime bootstraps the default adapters (in-memory bus and queue,
// Prometheus observability, collectors and sinks enabled in cfg). Any failure
// leaves nothing running.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (_ *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	level := new(slog.LevelVar)
	lvl, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	level.Set(lvl)

	logger := overrides.logger
	if logger == nil {
		logger = config.NewLogger(cfg.Log, level)
	}

	r := &Runtime{
		cfg:        cfg,
		configPath: overrides.configPath,
		id:         uuid.NewString(),
		logger:     logger.With(slog.String("component", "safe_detector")),
		level:      level,
		clock:      overrides.clock,
		noMetrics:  overrides.noMetrics,
		inputs:     bus.NewInputs(cfg.Detector.DistanceSensors),
		statuses:   bus.NewTopic[domain.SafetyStatus]("safe_detector"),
	}
	if r.clock == nil {
		r.clock = detector.NewMonotonicClock()
	}
	defer func() {
		if err != nil {
			if r.obs != nil {
				_ = r.obs.Close()
			}
			_ = r.closeResources()
		}
	}()

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	r.gatherer = prometheus.DefaultGatherer
	if overrides.registry != nil {
		reg = overrides.registry
		r.gatherer = overrides.registry
	}

	r.obs = overrides.observability
	if r.obs == nil {
		prom, perr := observability.NewPromObs(reg, r.logger)
		if perr != nil {
			return nil, fmt.Errorf("register metrics: %w", perr)
		}
		r.obs = prom
	}

	r.queue = overrides.queue
	if r.queue == nil {
		r.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	if err = r.buildCollectors(overrides.collectors); err != nil {
		return nil, err
	}
	if err = r.buildSinks(overrides.sinks); err != nil {
		return nil, err
	}

	r.detector, err = detector.New(cfg.Detector.Interval, detector.Deps{
		VehicleStatus:   r.inputs.VehicleStatus.Subscribe(),
		DistanceSensors: r.inputs.DistanceSubscriptions(),
		ParamUpdates:    r.inputs.ParameterUpdate.Subscribe(),
		Reloader:        r,
		Publisher:       pipeline.Fanout{r.statuses, pipeline.NewQueuePublisher(r.queue, cfg.Policy, r.obs)},
		Clock:           r.clock,
		Obs:             r.obs,
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Runtime) buildCollectors(extra []Collector) error {
	if c := r.cfg.Sources.OPCUA; c != nil {
		col, err := opcua.NewCollector(*c)
		if err != nil {
			return fmt.Errorf("opcua collector: %w", err)
		}
		r.collectors = append(r.collectors, col)
	}
	if c := r.cfg.Sources.NATS; c != nil {
		nc, err := natsio.Connect(c.Config, r.logger)
		if err != nil {
			return err
		}
		r.conns = append(r.conns, nc)
		r.collectors = append(r.collectors, natsio.NewCollector(nc, c.CollectorConfig, r.logger))
	}
	for _, col := range extra {
		if col == nil {
			return fmt.Errorf("collector is nil")
		}
		r.collectors = append(r.collectors, col)
	}
	return nil
}

func (r *Runtime) buildSinks(extra []Sink) error {
	if c := r.cfg.Sinks.Timescale; c != nil {
		db, err := sql.Open("postgres", c.ConnString)
		if err != nil {
			return err
		}
		r.db = db
		r.sinks = append(r.sinks, sink.NewTimescaleSink(db, c.Table, r.id))
	}
	if c := r.cfg.Sinks.NATS; c != nil {
		nc, err := natsio.Connect(c.Config, r.logger)
		if err != nil {
			return err
		}
		r.conns = append(r.conns, nc)
		r.sinks = append(r.sinks, natsio.NewSink(nc, c.Subject))
	}
	if c := r.cfg.Sinks.Journal; c != nil {
		j, err := journal.Open(c.Dir, r.id)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		r.journal = j
		r.sinks = append(r.sinks, j)
	}
	if r.cfg.Sinks.WebSocket != nil {
		r.hub = websocket.NewHub(r.logger)
		r.sinks = append(r.sinks, r.hub)
	}
	for _, s := range extra {
		if s == nil {
			return fmt.Errorf("sink is nil")
		}
		r.sinks = append(r.sinks, s)
	}
	return nil
}

// ID identifies this runtime instance in persisted statuses.
func (r *Runtime) ID() string { return r.id }

// State reports whether the detector is ticking.
func (r *Runtime) State() RunState { return r.detector.State() }

// Inputs lets embedding code publish arm state and distance samples directly.
func (r *Runtime) Inputs() *Inputs {
	return &Inputs{inputs: r.inputs, clock: r.clock}
}

// Statuses subscribes to the in-process status stream. The subscription sees
// only statuses published after this call.
func (r *Runtime) Statuses() StatusSubscription {
	return r.statuses.Subscribe()
}

// Start launches collectors, the egress pipeline, the detector loop and the
// metrics server. It returns immediately; call Run to block on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrRuntimeStopped
	}
	if r.started {
		return ErrRuntimeStarted
	}

	pubs := r.inputs.Publishers()
	for i, col := range r.collectors {
		if err := col.Start(pubs); err != nil {
			for _, started := range r.collectors[:i] {
				_ = started.Stop()
			}
			return fmt.Errorf("start collector: %w", err)
		}
	}

	egressCtx, cancelEgress := context.WithCancel(context.Background())
	r.cancelEgress = cancelEgress
	r.egressDone = make(chan struct{})
	go func() {
		defer close(r.egressDone)
		pipeline.RunEgressPipeline(egressCtx, r.queue, r.sinks, r.cfg.Policy, r.obs)
	}()

	detectorCtx, cancelDetector := context.WithCancel(context.Background())
	r.cancelDetector = cancelDetector
	r.detectorDone = make(chan struct{})
	go func() {
		defer close(r.detectorDone)
		r.detectorErr = r.detector.Run(detectorCtx)
	}()

	if !r.noMetrics {
		r.startMetrics()
	}
	r.started = true
	r.logger.Info("runtime_started",
		slog.String("instance_id", r.id),
		slog.Int("collectors", len(r.collectors)),
		slog.Int("sinks", len(r.sinks)))
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Reload re-reads the config file on the caller's goroutine and, if it is
// valid, asks the detector to apply the hot-reloadable settings on its next
// tick. An invalid file leaves the running settings untouched.
func (r *Runtime) Reload() error {
	if r.configPath != "" {
		cfg, err := config.Load(r.configPath)
		if err != nil {
			return fmt.Errorf("reload %s: %w", r.configPath, err)
		}
		lvl, err := config.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		r.pendingLevel.Store(&lvl)
	}
	r.inputs.ParameterUpdate.Publish(domain.ParameterUpdate{Timestamp: r.clock.NowMicros()})
	return nil
}

// ReloadParams applies settings parsed by Reload. It runs on the detector
// goroutine and never touches the filesystem.
func (r *Runtime) ReloadParams() error {
	lvl := r.pendingLevel.Swap(nil)
	if lvl == nil {
		return nil
	}
	r.level.Set(*lvl)
	r.logger.Info("params_reloaded", slog.String("log_level", lvl.String()))
	return nil
}

// Shutdown stops the detector first so no tick runs during teardown. Then it
// stops the collectors, flushes the egress pipeline and closes what it owns.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	r.stopped = true

	var errs []error
	if r.started {
		r.cancelDetector()
		select {
		case <-r.detectorDone:
			if r.detectorErr != nil {
				errs = append(errs, r.detectorErr)
			}
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("wait for detector: %w", ctx.Err()))
		}

		for _, col := range r.collectors {
			if err := col.Stop(); err != nil {
				errs = append(errs, err)
			}
		}

		r.cancelEgress()
		select {
		case <-r.egressDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("wait for egress: %w", ctx.Err()))
		}

		if r.metricsSrv != nil {
			if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}
	} else {
		_ = r.obs.Close()
	}

	if err := r.closeResources(); err != nil {
		errs = append(errs, err)
	}
	r.logger.Info("runtime_stopped", slog.String("instance_id", r.id))
	return errors.Join(errs...)
}

func (r *Runtime) closeResources() error {
	var errs []error
	if r.hub != nil {
		if err := r.hub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, nc := range r.conns {
		nc.Close()
	}
	r.conns = nil
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
		r.db = nil
	}
	return errors.Join(errs...)
}

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if r.detector.State() != detector.Running {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("stopped"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if r.hub != nil {
		mux.Handle(r.cfg.Sinks.WebSocket.Path, r.hub)
	}

	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := r.metricsSrv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server exited", slog.Any("error", err))
		}
	}()
}
