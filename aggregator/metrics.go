package aggregator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cubfinance/refi/types"
)

// Metrics tracks per-protocol fetch behavior.
type Metrics struct {
	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec
	Positions     *prometheus.GaugeVec
}

// NewMetrics builds the aggregator metrics and registers them when a
// registerer is given.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "refi",
			Subsystem: "aggregator",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of per-protocol data fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"protocol", "operation"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refi",
			Subsystem: "aggregator",
			Name:      "fetch_errors_total",
			Help:      "Per-protocol fetch failures.",
		}, []string{"protocol", "operation"}),
		Positions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "refi",
			Subsystem: "aggregator",
			Name:      "positions",
			Help:      "Positions returned by the last per-protocol fetch.",
		}, []string{"protocol"}),
	}
	if reg != nil {
		reg.MustRegister(m.FetchDuration, m.FetchErrors, m.Positions)
	}
	return m
}

func (m *Metrics) recordPositions(protocol types.Protocol, count int) {
	if m == nil {
		return
	}
	m.Positions.WithLabelValues(string(protocol)).Set(float64(count))
}

func (m *Metrics) observe(protocol types.Protocol, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(string(protocol), operation).Observe(elapsed.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(string(protocol), operation).Inc()
	}
}
