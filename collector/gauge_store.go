package collector

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const gaugeHelp = "Value read from the latest Core Temp log record."

// storedGauge is one (name, labels) series and its last value.
type storedGauge struct {
	name        string
	labelNames  []string
	labelValues []string
	value       float64
}

// GaugeStore keeps the last value written for every (name, labels) combination
// and exposes them as gauges. Metric names come from the log header and are
// unknown until the first record is read, so GaugeStore is an unchecked
// collector: Describe yields nothing.
type GaugeStore struct {
	mu     sync.RWMutex
	gauges map[string]storedGauge
	logger *slog.Logger
}

// NewGaugeStore returns an empty *GaugeStore.
func NewGaugeStore(logger *slog.Logger) *GaugeStore {
	return &GaugeStore{
		gauges: map[string]storedGauge{},
		logger: logger.With(slog.String("collector", "GaugeStore")),
	}
}

// SetGauge records value for name and tags, replacing any earlier value.
func (g *GaugeStore) SetGauge(name string, tags map[string]string, value float64) {
	labelNames := slices.Sorted(maps.Keys(tags))
	labelValues := make([]string, 0, len(labelNames))
	for _, l := range labelNames {
		labelValues = append(labelValues, tags[l])
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.gauges[seriesKey(name, labelNames, labelValues)] = storedGauge{
		name:        name,
		labelNames:  labelNames,
		labelValues: labelValues,
		value:       value,
	}
}

// Len returns the number of series held.
func (g *GaugeStore) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.gauges)
}

// Describe implements prometheus.Collector
func (g *GaugeStore) Describe(ch chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector
func (g *GaugeStore) Collect(ch chan<- prometheus.Metric) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, gauge := range g.gauges {
		desc := prometheus.NewDesc(gauge.name, gaugeHelp, gauge.labelNames, nil)
		metric, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, gauge.value, gauge.labelValues...)
		if err != nil {
			g.logger.Warn("skipping invalid gauge", slog.String("metric", gauge.name), slog.Any("error", err))
			continue
		}
		ch <- metric
	}
}

func seriesKey(name string, labelNames, labelValues []string) string {
	var b strings.Builder
	b.WriteString(name)
	for i := range labelNames {
		b.WriteByte(0xff)
		b.WriteString(labelNames[i])
		b.WriteByte('=')
		b.WriteString(labelValues[i])
	}
	return b.String()
}
