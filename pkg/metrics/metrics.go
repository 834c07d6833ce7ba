package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricType selects the collector NewMetric builds.
type MetricType string

const (
	TypeCounter      MetricType = "counter"
	TypeCounterVec   MetricType = "counter_vec"
	TypeHistogramVec MetricType = "histogram_vec"
	TypeSummaryVec   MetricType = "summary_vec"
)

// RequestBuckets covers HTTP latencies in milliseconds.
var RequestBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

// AssistantBuckets stretches up to the assistant timeout; answers routinely
// take several seconds.
var AssistantBuckets = []float64{500, 1000, 2000, 3000, 5000, 7500, 10000, 15000, 20000, 30000, 45000, 60000}

// Metric describes one collector: its name, help text, kind and labels.
type Metric struct {
	ID          string
	Name        string
	Description string
	Type        MetricType
	Args        []string
	// Buckets applies to histograms; RequestBuckets when empty.
	Buckets []float64
}

// NewMetric builds the collector described by m. Unknown types yield nil.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case TypeCounterVec:
		return prometheus.NewCounterVec(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case TypeCounter:
		return prometheus.NewCounter(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description})
	case TypeHistogramVec:
		buckets := m.Buckets
		if len(buckets) == 0 {
			buckets = RequestBuckets
		}
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: buckets}, m.Args)
	case TypeSummaryVec:
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	}
	return nil
}

// register adds c to reg, reusing a collector that is already registered
// under the same description.
func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		return are.ExistingCollector, nil
	}
	return c, nil
}

const (
	RefererKey = "X-Referer"
)
