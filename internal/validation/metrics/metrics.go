package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the validation module.
type Metrics struct {
	// Validations by type and final verdict
	Validations *prometheus.CounterVec

	// Rule engine overrides by rule code
	RuleApplications *prometheus.CounterVec

	// Insert races recovered through the bounded retry
	UpsertConflicts prometheus.Counter

	// Record lifecycle operations (soft_delete, restore)
	LifecycleOps *prometheus.CounterVec

	// Outcome cache hits and misses
	CacheLookups *prometheus.CounterVec

	// Full validate latency including persistence
	ValidateLatency prometheus.Histogram
}

// New creates a Metrics instance with all validation module metrics registered.
func New() *Metrics {
	return &Metrics{
		Validations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "validbus_validations_total",
			Help: "Total validations by type and final verdict",
		}, []string{"type", "valid"}),

		RuleApplications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "validbus_rule_applications_total",
			Help: "Total decision rule applications by rule code",
		}, []string{"rule_code"}),

		UpsertConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "validbus_upsert_conflicts_total",
			Help: "Fingerprint insert races recovered via the bounded retry",
		}),

		LifecycleOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "validbus_lifecycle_operations_total",
			Help: "Record lifecycle operations by kind",
		}, []string{"operation"}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "validbus_outcome_cache_lookups_total",
			Help: "Validator outcome cache lookups by result",
		}, []string{"result"}),

		ValidateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "validbus_validate_duration_seconds",
			Help:    "Duration of full validate calls including persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementValidation records a completed validation.
func (m *Metrics) IncrementValidation(validationType string, valid bool) {
	if m != nil {
		verdict := "false"
		if valid {
			verdict = "true"
		}
		m.Validations.WithLabelValues(validationType, verdict).Inc()
	}
}

// IncrementRuleApplication records a decision rule firing.
func (m *Metrics) IncrementRuleApplication(ruleCode string) {
	if m != nil && ruleCode != "" {
		m.RuleApplications.WithLabelValues(ruleCode).Inc()
	}
}

// IncrementUpsertConflict records a recovered fingerprint insert race.
func (m *Metrics) IncrementUpsertConflict() {
	if m != nil {
		m.UpsertConflicts.Inc()
	}
}

// IncrementLifecycleOp records a soft delete or restore.
func (m *Metrics) IncrementLifecycleOp(operation string) {
	if m != nil {
		m.LifecycleOps.WithLabelValues(operation).Inc()
	}
}

// IncrementCacheLookup records an outcome cache hit or miss.
func (m *Metrics) IncrementCacheLookup(hit bool) {
	if m != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// ObserveValidateLatency records the total validate duration.
func (m *Metrics) ObserveValidateLatency(d time.Duration) {
	if m != nil {
		m.ValidateLatency.Observe(d.Seconds())
	}
}
