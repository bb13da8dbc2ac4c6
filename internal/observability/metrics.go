package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the agent's Prometheus series. Every series carries an
// instance label so several agents can share one registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	ticks              *prometheus.CounterVec
	tickDuration       *prometheus.HistogramVec
	collectionFailures *prometheus.CounterVec
	alerts             *prometheus.CounterVec
	sinkFailures       *prometheus.CounterVec
	predictorFailures  *prometheus.CounterVec
	health             *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmon_ticks_total",
			Help: "Samples evaluated by the agent.",
		}, []string{"instance"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthmon_tick_duration_seconds",
			Help:    "Time spent evaluating a sample and dispatching its alerts.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"instance"}),
		collectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmon_collection_failures_total",
			Help: "Ticks skipped because the metric source failed.",
		}, []string{"instance", "source"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmon_alerts_total",
			Help: "Alert events dispatched, by kind.",
		}, []string{"instance", "kind"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmon_sink_failures_total",
			Help: "Alert deliveries that failed.",
		}, []string{"instance", "sink"}),
		predictorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmon_predictor_failures_total",
			Help: "Forecasts that failed or were skipped.",
		}, []string{"instance"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthmon_health_state",
			Help: "Current health state: 0 unknown, 1 healthy, 2 warning.",
		}, []string{"instance"}),
	}

	var err error
	m.ticks = register(reg, m.ticks, &err)
	m.tickDuration = register(reg, m.tickDuration, &err)
	m.collectionFailures = register(reg, m.collectionFailures, &err)
	m.alerts = register(reg, m.alerts, &err)
	m.sinkFailures = register(reg, m.sinkFailures, &err)
	m.predictorFailures = register(reg, m.predictorFailures, &err)
	m.health = register(reg, m.health, &err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// register adopts an already registered collector of the same shape, which
// happens when several agents are built against one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if *errp != nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		*errp = err
	}
	return c
}

func (m *Metrics) ObserveTick(instance string, seconds float64) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(instance).Inc()
	m.tickDuration.WithLabelValues(instance).Observe(seconds)
}

func (m *Metrics) IncCollectionFailure(instance, source string) {
	if m == nil {
		return
	}
	m.collectionFailures.WithLabelValues(instance, source).Inc()
}

func (m *Metrics) IncAlert(instance, kind string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(instance, kind).Inc()
}

func (m *Metrics) IncSinkFailure(instance, sink string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(instance, sink).Inc()
}

func (m *Metrics) IncPredictorFailure(instance string) {
	if m == nil {
		return
	}
	m.predictorFailures.WithLabelValues(instance).Inc()
}

func (m *Metrics) SetHealth(instance string, state float64) {
	if m == nil {
		return
	}
	m.health.WithLabelValues(instance).Set(state)
}
