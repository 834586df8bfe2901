package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ValidatorMetrics tracks token-validation cache behavior for monitoring.
// All methods are nil-safe so the validator can run without metrics wired
// (unit tests, the standalone tool server).
type ValidatorMetrics struct {
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	validations *prometheus.CounterVec
}

// NewValidatorMetrics creates the validator counters and registers them with
// the given registerer.
func NewValidatorMetrics(reg prometheus.Registerer) *ValidatorMetrics {
	m := &ValidatorMetrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "persai_token_validation_cache_hits_total",
			Help: "Number of token validations served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "persai_token_validation_cache_misses_total",
			Help: "Number of token validations that required an upstream probe.",
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "persai_token_validations_total",
			Help: "Upstream session validation probes by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.cacheHits, m.cacheMisses, m.validations)
	return m
}

func (m *ValidatorMetrics) recordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *ValidatorMetrics) recordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *ValidatorMetrics) recordValidation(valid bool) {
	if m == nil {
		return
	}
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.validations.WithLabelValues(outcome).Inc()
}
