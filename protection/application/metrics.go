package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"protection-gateway/protection/domain"
)

// Metrics expõe contadores Prometheus das decisões da pipeline.
// Labels só de baixa cardinalidade (outcome/reason, nunca IP ou path).
type Metrics struct {
	decisions  *prometheus.CounterVec
	violations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protection",
			Name:      "decisions_total",
			Help:      "Admission pipeline decisions by outcome and reason.",
		}, []string{"outcome", "reason"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protection",
			Name:      "violations_total",
			Help:      "Recorded violations by type.",
		}, []string{"type"}),
	}
}

// ObserveDecision registra uma decisão terminada da pipeline.
func (m *Metrics) ObserveDecision(d domain.Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(d.Outcome), string(d.Reason)).Inc()
}

// ObserveViolation registra uma violação gravada.
func (m *Metrics) ObserveViolation(vt domain.ViolationType) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(string(vt)).Inc()
}
