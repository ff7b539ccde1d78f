// Package metrics holds the Prometheus collectors each binary exports. Every
// recorder is nil-safe so callers can run without metrics in tests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// collectors gathers the vectors of one recorder and registers them together.
// A nil registerer yields working but unexported vectors.
type collectors struct {
	reg prometheus.Registerer
	all []prometheus.Collector
}

func (c *collectors) counter(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	c.all = append(c.all, vec)
	return vec
}

func (c *collectors) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
	c.all = append(c.all, vec)
	return vec
}

func (c *collectors) register() {
	if c.reg != nil {
		c.reg.MustRegister(c.all...)
	}
}

func bump(vec *prometheus.CounterVec, n float64, values ...string) {
	if n <= 0 {
		return
	}
	for i, v := range values {
		if v == "" {
			values[i] = "unknown"
		}
	}
	vec.WithLabelValues(values...).Add(n)
}
