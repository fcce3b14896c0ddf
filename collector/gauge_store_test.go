package collector

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func newTestStore() *GaugeStore {
	return NewGaugeStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// collectAll drains Collect into a map keyed by metric name plus labels.
func collectAll(t *testing.T, c prometheus.Collector) map[string]float64 {
	t.Helper()
	metricsCh := make(chan prometheus.Metric, 64)
	go func() {
		c.Collect(metricsCh)
		close(metricsCh)
	}()

	got := map[string]float64{}
	for metric := range metricsCh {
		m := &dto.Metric{}
		require.NoError(t, metric.Write(m))
		var b strings.Builder
		b.WriteString(metric.Desc().String())
		for _, label := range m.Label {
			b.WriteString("|" + label.GetName() + "=" + label.GetValue())
		}
		got[b.String()] = m.GetGauge().GetValue()
	}
	return got
}

func TestGaugeStoreLastWriteWins(t *testing.T) {
	store := newTestStore()
	store.SetGauge("temp", map[string]string{"core": "core_0"}, 40)
	store.SetGauge("temp", map[string]string{"core": "core_0"}, 41)
	store.SetGauge("temp", map[string]string{"core": "core_1"}, 50)
	store.SetGauge("coretemp_power", nil, 12.5)
	store.SetGauge("coretemp_power", map[string]string{}, 13)

	require.Equal(t, 3, store.Len())

	expected := `
# HELP coretemp_power Value read from the latest Core Temp log record.
# TYPE coretemp_power gauge
coretemp_power 13
# HELP temp Value read from the latest Core Temp log record.
# TYPE temp gauge
temp{core="core_0"} 41
temp{core="core_1"} 50
`
	require.NoError(t, testutil.CollectAndCompare(store, strings.NewReader(expected)))
}

func TestGaugeStoreLabelOrder(t *testing.T) {
	store := newTestStore()
	store.SetGauge("m", map[string]string{"b": "2", "a": "1"}, 1)
	store.SetGauge("m", map[string]string{"a": "1", "b": "2"}, 2)

	require.Equal(t, 1, store.Len())
	require.Equal(t, 2.0, testutil.ToFloat64(store))
}

func TestGaugeStoreSkipsInvalidNames(t *testing.T) {
	store := newTestStore()
	store.SetGauge("coretemp_ok", nil, 1)
	store.SetGauge("coretemp_bad", map[string]string{"__reserved": "x"}, 2)

	got := collectAll(t, store)
	require.Len(t, got, 1)
	for key, value := range got {
		require.Contains(t, key, "coretemp_ok")
		require.Equal(t, 1.0, value)
	}
}

func TestGaugeStoreRegistersUnchecked(t *testing.T) {
	store := newTestStore()
	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(store))

	// New names appear after registration.
	store.SetGauge("temp", map[string]string{"core": "core_0"}, 40)
	store.SetGauge("coretemp_load_percent", nil, 3)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := []string{}
	for _, mf := range families {
		require.Equal(t, dto.MetricType_GAUGE, mf.GetType())
		names = append(names, mf.GetName())
	}
	require.ElementsMatch(t, []string{"temp", "coretemp_load_percent"}, names)
}

func TestGaugeStoreConcurrentAccess(t *testing.T) {
	store := newTestStore()
	wg := &sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(v float64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.SetGauge("temp", map[string]string{"core": "core_0"}, v)
			}
		}(float64(i))
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collectAll(t, store)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, store.Len())
}
