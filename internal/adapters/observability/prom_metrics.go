package observability

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/SafeDetector/internal/ports"
)

// PromObs implements ports.Observability with Prometheus collectors standing in
// for loop perf counters, and slog for structured logs.
type PromObs struct {
	reg    prometheus.Registerer
	logger *slog.Logger

	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer

	collectors []prometheus.Collector
	closeOnce  sync.Once
}

// NewPromObs registers the detector collectors on reg. A nil reg uses the
// default registerer and a nil logger uses slog.Default.
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) (*PromObs, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safedetector_ticks_total",
		Help: "Detector ticks executed; one safety status is published per tick.",
	})
	unsafeTicks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safedetector_unsafe_ticks_total",
		Help: "Ticks that published an unsafe flag.",
	})
	reloads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safedetector_param_reloads_total",
		Help: "Parameter reloads applied after an update notification.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safedetector_statuses_dropped_total",
		Help: "Statuses lost to egress queue backpressure.",
	})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safedetector_statuses_delivered_total",
		Help: "Statuses written to downstream sinks.",
	})
	sinkErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safedetector_sink_errors_total",
		Help: "Failed sink batch writes.",
	})
	safe := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "safedetector_safe",
		Help: "Last published safety flag (1 = safe).",
	})
	armed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "safedetector_armed",
		Help: "Cached arm state (1 = armed).",
	})
	distance := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "safedetector_distance_meters",
		Help: "Cached distance to ground.",
	})
	queueLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "safedetector_egress_queue_length",
		Help: "Statuses buffered for downstream sinks.",
	})
	running := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "safedetector_running",
		Help: "1 while the detector is ticking.",
	})
	loop := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "safedetector_loop_duration_seconds",
		Help:    "Time spent inside one tick.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 2, 16),
	})
	interval := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "safedetector_loop_interval_seconds",
		Help:    "Time between consecutive tick starts.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	p := &PromObs{
		reg:    reg,
		logger: logger,
		counters: map[string]prometheus.Counter{
			"safedetector_ticks_total":              ticks,
			"safedetector_unsafe_ticks_total":       unsafeTicks,
			"safedetector_param_reloads_total":      reloads,
			"safedetector_statuses_dropped_total":   dropped,
			"safedetector_statuses_delivered_total": delivered,
			"safedetector_sink_errors_total":        sinkErrors,
		},
		gauges: map[string]prometheus.Gauge{
			"safedetector_safe":                safe,
			"safedetector_armed":               armed,
			"safedetector_distance_meters":     distance,
			"safedetector_egress_queue_length": queueLen,
			"safedetector_running":             running,
		},
		histos: map[string]prometheus.Observer{
			"safedetector_loop_duration_seconds": loop,
			"safedetector_loop_interval_seconds": interval,
		},
	}

	p.collectors = []prometheus.Collector{
		ticks, unsafeTicks, reloads, dropped, delivered, sinkErrors,
		safe, armed, distance, queueLen, running, loop, interval,
	}
	for i, c := range p.collectors {
		if err := reg.Register(c); err != nil {
			for _, registered := range p.collectors[:i] {
				reg.Unregister(registered)
			}
			return nil, err
		}
	}
	return p, nil
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), slog.Any("error", err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), slog.Any("error", err), slog.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

// Close unregisters every collector so a later instance can register again.
func (p *PromObs) Close() error {
	p.closeOnce.Do(func() {
		for _, c := range p.collectors {
			p.reg.Unregister(c)
		}
	})
	return nil
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
