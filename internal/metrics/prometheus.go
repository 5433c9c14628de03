package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "affinity_warden"

// PrometheusCollector implements Collector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	cycles        *prometheus.CounterVec
	cycleErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
	changes       *prometheus.CounterVec
	skips         *prometheus.CounterVec
	failures      *prometheus.CounterVec
	swept         prometheus.Counter
	noMatchStreak prometheus.Gauge
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a collector registered on reg, or on
// prometheus.DefaultRegisterer when reg is nil.
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reconcile",
			Name:      "cycles_total",
			Help:      "Poll cycles by match outcome (both, main, worker, none).",
		}, []string{"match"})

		p.cycleErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reconcile",
			Name:      "cycle_errors_total",
			Help:      "Poll cycles that failed before reconciling any process.",
		})

		p.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "reconcile",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent enumerating and reconciling processes per cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		})

		p.changes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "affinity",
			Name:      "changes_total",
			Help:      "Affinity writes issued, by role.",
		}, []string{"role"})

		p.skips = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "affinity",
			Name:      "skips_total",
			Help:      "Processes skipped because they vanished or denied access, by role.",
		}, []string{"role"})

		p.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "affinity",
			Name:      "failures_total",
			Help:      "Unexpected per-process OS failures, by role.",
		}, []string{"role"})

		p.swept = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "sweep",
			Name:      "moved_total",
			Help:      "Processes moved off the reserved cores by the startup sweep.",
		})

		p.noMatchStreak = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "reconcile",
			Name:      "no_match_streak",
			Help:      "Consecutive cycles in which no configured process was found.",
		})

		p.reg.MustRegister(p.cycles)
		p.reg.MustRegister(p.cycleErrors)
		p.reg.MustRegister(p.cycleDuration)
		p.reg.MustRegister(p.changes)
		p.reg.MustRegister(p.skips)
		p.reg.MustRegister(p.failures)
		p.reg.MustRegister(p.swept)
		p.reg.MustRegister(p.noMatchStreak)
	})
}

func (p *PrometheusCollector) ObserveCycle(mainFound, workerFound bool, duration time.Duration) {
	p.ensureRegistered()
	p.cycles.WithLabelValues(matchLabel(mainFound, workerFound)).Inc()
	p.cycleDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) IncCycleError() {
	p.ensureRegistered()
	p.cycleErrors.Inc()
}

func (p *PrometheusCollector) IncAffinityChange(role string) {
	p.ensureRegistered()
	p.changes.WithLabelValues(role).Inc()
}

func (p *PrometheusCollector) IncAffinitySkip(role string) {
	p.ensureRegistered()
	p.skips.WithLabelValues(role).Inc()
}

func (p *PrometheusCollector) IncAffinityFailure(role string) {
	p.ensureRegistered()
	p.failures.WithLabelValues(role).Inc()
}

func (p *PrometheusCollector) AddSwept(count int) {
	p.ensureRegistered()
	p.swept.Add(float64(count))
}

func (p *PrometheusCollector) SetNoMatchStreak(streak int) {
	p.ensureRegistered()
	p.noMatchStreak.Set(float64(streak))
}

func matchLabel(mainFound, workerFound bool) string {
	switch {
	case mainFound && workerFound:
		return "both"
	case mainFound:
		return "main"
	case workerFound:
		return "worker"
	default:
		return "none"
	}
}

// Server serves /metrics for a registry until its context is cancelled.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

// Run blocks serving requests and shuts down when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
