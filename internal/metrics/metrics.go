// Package metrics counts run outcomes on a private Prometheus registry and
// writes them in textfile-collector format when a run ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
)

// Metrics holds the run counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	ProviderCalls *prometheus.CounterVec
	Domains       *prometheus.CounterVec
	Entities      *prometheus.CounterVec
	Contacts      *prometheus.CounterVec
	BudgetUsed    prometheus.Gauge
}

// New registers the run counters on a fresh registry, labelled with the
// profile name.
func New(profile string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"profile": profile}

	return &Metrics{
		registry: reg,
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "leadbridge_provider_calls_total",
			Help:        "Contact provider lookups by provider and outcome.",
			ConstLabels: constLabels,
		}, []string{"provider", "outcome"}),
		Domains: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "leadbridge_domains_total",
			Help:        "Domain discovery outcomes.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		Entities: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "leadbridge_entities_total",
			Help:        "Entities loaded by source.",
			ConstLabels: constLabels,
		}, []string{"source"}),
		Contacts: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "leadbridge_contacts_total",
			Help:        "Final contact provenance tags.",
			ConstLabels: constLabels,
		}, []string{"tag"}),
		BudgetUsed: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "leadbridge_budget_used",
			Help:        "Provider calls charged against the run cap.",
			ConstLabels: constLabels,
		}),
	}
}

// ProviderCall counts one lookup.
func (m *Metrics) ProviderCall(provider, outcome string) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(provider, outcome).Inc()
}

// Domain counts one discovery outcome.
func (m *Metrics) Domain(outcome string) {
	if m == nil {
		return
	}
	m.Domains.WithLabelValues(outcome).Inc()
}

// EntitiesLoaded adds n loaded entities for source.
func (m *Metrics) EntitiesLoaded(source string, n int) {
	if m == nil {
		return
	}
	m.Entities.WithLabelValues(source).Add(float64(n))
}

// Contact counts one final provenance tag.
func (m *Metrics) Contact(tag string) {
	if m == nil {
		return
	}
	m.Contacts.WithLabelValues(tag).Inc()
}

// SetBudgetUsed records the calls charged so far.
func (m *Metrics) SetBudgetUsed(n int) {
	if m == nil {
		return
	}
	m.BudgetUsed.Set(float64(n))
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes every metric to path for node_exporter's textfile
// collector. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}
