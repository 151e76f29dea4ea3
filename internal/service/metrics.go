package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK         = "ok"
	outcomeParseError = "parse_error"
	outcomeRejected   = "rejected"
	outcomeFailed     = "failed"
)

// Metrics holds the conversion metrics.
type Metrics struct {
	conversions *prometheus.CounterVec
	duration    prometheus.Histogram
	pdfSize     prometheus.Histogram
}

// NewMetrics registers the conversion metrics with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eln_conversions_total",
				Help: "Total number of XML to PDF conversions by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eln_conversion_duration_seconds",
			Help:    "Time spent building and rendering a report.",
			Buckets: prometheus.DefBuckets,
		}),
		pdfSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eln_pdf_size_bytes",
			Help:    "Size of generated PDF reports.",
			Buckets: prometheus.ExponentialBuckets(4096, 4, 8),
		}),
	}
	for _, c := range []prometheus.Collector{m.conversions, m.duration, m.pdfSize} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeConversion(outcome string, took time.Duration, res *ConvertResult) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(outcome).Inc()
	m.duration.Observe(took.Seconds())
	if res != nil && len(res.PDF) > 0 {
		m.pdfSize.Observe(float64(len(res.PDF)))
	}
}
