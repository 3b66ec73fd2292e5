package provider

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes, as recorded in the "result" label.
const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultUncached = "uncached"
	ResultError    = "error"
)

// Metrics records resolver activity. A nil *Metrics records nothing.
type Metrics struct {
	resolutions   *prometheus.CounterVec
	constructions *prometheus.CounterVec
}

// NewMetrics creates the resolver counters and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeprovider",
			Name:      "resolutions_total",
			Help:      "Node provider resolutions by provider type and result.",
		}, []string{"provider", "result"}),
		constructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeprovider",
			Name:      "constructions_total",
			Help:      "Node provider instances constructed by provider type.",
		}, []string{"provider"}),
	}

	for _, collector := range []prometheus.Collector{m.resolutions, m.constructions} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) resolved(typ, result string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(typ, result).Inc()
}

func (m *Metrics) constructed(typ string) {
	if m == nil {
		return
	}
	m.constructions.WithLabelValues(typ).Inc()
}
