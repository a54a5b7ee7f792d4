package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide Prometheus metrics.
type Metrics struct {
	CasesCreated  prometheus.Counter
	ConfigReloads prometheus.Counter
}

// New creates all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all metrics on the given registerer. Tests pass a fresh
// registry to avoid duplicate registration across suites.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CasesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "boreal_cases_created_total",
			Help: "Total number of cases created in the system",
		}),
		ConfigReloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "boreal_config_reloads_total",
			Help: "Total number of domain config bundle reloads",
		}),
	}
}

// IncrementCasesCreated increments the cases created counter by 1
func (m *Metrics) IncrementCasesCreated() {
	m.CasesCreated.Inc()
}

// IncrementConfigReloads increments the config reload counter by 1
func (m *Metrics) IncrementConfigReloads() {
	m.ConfigReloads.Inc()
}
