package collector

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric name parts.
const (
	namespace = "coretemp"
	exporter  = "exporter"
)

// Tailer cycle results.
const (
	ResultOK     = "ok"
	ResultNoData = "no_data"
	ResultError  = "error"
)

// Supervisor failure stages.
const (
	StageLaunch    = "launch"
	StageTerminate = "terminate"
)

// ExporterMetrics describes the exporter's own health. It implements
// prometheus.Collector by delegating to its members.
type ExporterMetrics struct {
	Cycles              *prometheus.CounterVec
	HeaderMismatches    prometheus.Counter
	LastRecordTimestamp prometheus.Gauge
	SamplesPublished    prometheus.Gauge
	SupervisorLaunches  prometheus.Counter
	SupervisorFailures  *prometheus.CounterVec
}

// NewExporterMetrics returns an *ExporterMetrics with every result and stage
// label pre-initialised so the series exist from the first scrape.
func NewExporterMetrics() *ExporterMetrics {
	m := &ExporterMetrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: exporter,
				Name:      "cycles_total",
				Help:      "Log tailing cycles by result.",
			},
			[]string{"result"},
		),
		HeaderMismatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: exporter,
				Name:      "header_mismatch_total",
				Help:      "Records whose column count differed from the header.",
			},
		),
		LastRecordTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: exporter,
				Name:      "last_record_timestamp_seconds",
				Help:      "Timestamp of the latest exported log record.",
			},
		),
		SamplesPublished: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: exporter,
				Name:      "samples_published",
				Help:      "Gauges written to the store by the last successful cycle.",
			},
		),
		SupervisorLaunches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: exporter,
				Name:      "supervisor_launches_total",
				Help:      "Core Temp processes started by the supervisor.",
			},
		),
		SupervisorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: exporter,
				Name:      "supervisor_failures_total",
				Help:      "Supervisor failures by stage.",
			},
			[]string{"stage"},
		),
	}
	for _, result := range []string{ResultOK, ResultNoData, ResultError} {
		m.Cycles.WithLabelValues(result)
	}
	for _, stage := range []string{StageLaunch, StageTerminate} {
		m.SupervisorFailures.WithLabelValues(stage)
	}
	return m
}

func (m *ExporterMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Cycles,
		m.HeaderMismatches,
		m.LastRecordTimestamp,
		m.SamplesPublished,
		m.SupervisorLaunches,
		m.SupervisorFailures,
	}
}

// Describe implements prometheus.Collector.
func (m *ExporterMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *ExporterMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
