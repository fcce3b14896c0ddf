package tailer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	gta "gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestDeriveKeys(t *testing.T) {
	tT := map[string]struct {
		headers  []string
		wantKeys []MetricKey
	}{
		"core identifier then its temperature": {
			headers: []string{"Time", "Core #0", "Core 0 Temp"},
			wantKeys: []MetricKey{
				{Name: "coretemp_time"},
				{Name: "coretemp_core_0", Prefix: "core_0"},
				{Name: "temp", Prefix: "core_0"},
			},
		},
		"temperature without an earlier identifier uses its own prefix": {
			headers: []string{"Core 1 Temp"},
			wantKeys: []MetricKey{
				{Name: "temp", Prefix: "core_1"},
			},
		},
		"column prefix wins over the running prefix": {
			headers: []string{"Core #0", "Core 1 Temp"},
			wantKeys: []MetricKey{
				{Name: "coretemp_core_0", Prefix: "core_0"},
				{Name: "temp", Prefix: "core_1"},
			},
		},
		"load and speed columns inherit the running prefix": {
			headers: []string{"Core #2", "Core 2 Load (%)", "Core Speed (MHz)"},
			wantKeys: []MetricKey{
				{Name: "coretemp_core_2", Prefix: "core_2"},
				{Name: "coretemp_core_2_load_percent", Prefix: "core_2"},
				{Name: "coretemp_core_speed_mhz", Prefix: "core_2"},
			},
		},
		"cpu 0 power resets the running prefix": {
			headers: []string{"Core #0", "CPU 0 Power (W)", "Low Temp"},
			wantKeys: []MetricKey{
				{Name: "coretemp_core_0", Prefix: "core_0"},
				{Name: "coretemp_cpu_0_power_w"},
				{Name: "coretemp_low_temp"},
			},
		},
		"unit artifacts are stripped from the core tag": {
			headers: []string{"Core 0 Temp. (°)", "Core 1 Temp._?"},
			wantKeys: []MetricKey{
				{Name: "temp", Prefix: "core_0"},
				{Name: "temp", Prefix: "core_1"},
			},
		},
		"empty header becomes the default metric": {
			headers: []string{"Core #3", ""},
			wantKeys: []MetricKey{
				{Name: "coretemp_core_3", Prefix: "core_3"},
				{Name: "coretemp_default", Prefix: "core_3"},
			},
		},
		"whitespace header collapses to the bare prefix": {
			headers: []string{" "},
			wantKeys: []MetricKey{
				{Name: "coretemp"},
			},
		},
		"other columns are namespaced": {
			headers: []string{"Time", "Frequency (MHz)", "Load (%)"},
			wantKeys: []MetricKey{
				{Name: "coretemp_time"},
				{Name: "coretemp_frequency_mhz"},
				{Name: "coretemp_load_percent"},
			},
		},
	}
	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			gta.Assert(t, cmp.DeepEqual(test.wantKeys, DeriveKeys(test.headers)))
		})
	}
}

func TestDeriveKeysCoreIdentifiers(t *testing.T) {
	for n := 0; n < 64; n++ {
		keys := DeriveKeys([]string{fmt.Sprintf("Core%d", n), "Frequency"})
		core := fmt.Sprintf("core%d", n)
		require.Equal(t, "coretemp_"+core, keys[0].Name)
		require.Equal(t, core, keys[0].Prefix)
		require.Equal(t, core, keys[1].Prefix, "running prefix must carry to the next column")
	}
}

func TestDeriveKeysCoreTemperatures(t *testing.T) {
	for n := 0; n < 64; n++ {
		keys := DeriveKeys([]string{fmt.Sprintf("Core%d Temp", n)})
		require.Equal(t, "temp", keys[0].Name)
		require.Equal(t, fmt.Sprintf("core%d", n), keys[0].Prefix)
	}
}

func TestDeriveKeysHasNoTrailingArtifacts(t *testing.T) {
	headers := []string{
		"Core #0", "Core 0 Temp.", "Core 0 Temp._?", "Core 1 Temp. (°)", "Load (%)_",
		"Power._", "CPU 0 Power (W)", "Core__", " ", "", "Core 5 Temp__", "x.",
	}
	for _, key := range DeriveKeys(headers) {
		require.NotEmpty(t, key.Name)
		for _, v := range []string{key.Name, key.Prefix} {
			require.False(t, strings.HasSuffix(v, "_"), "%q ends in _", v)
			require.False(t, strings.HasSuffix(v, "._"), "%q ends in ._", v)
			require.Equal(t, v, trimArtifacts(v))
		}
	}
}

func TestDeriveSamples(t *testing.T) {
	tT := map[string]struct {
		header       string
		record       string
		wantSamples  []Sample
		wantMismatch bool
	}{
		"round trip": {
			header: "Time,Core #0,Core 0 Temp",
			record: "2024-01-01 00:00:00,1,45.5",
			wantSamples: []Sample{
				{Name: "coretemp_time", Value: 0},
				{Name: "coretemp_core_0", Tags: map[string]string{"core": "core_0"}, Value: 1},
				{Name: "temp", Tags: map[string]string{"core": "core_0"}, Value: 45.5},
			},
		},
		"unparseable value becomes zero": {
			header: "Time,Load (%)",
			record: "12:00:00,n/a",
			wantSamples: []Sample{
				{Name: "coretemp_time", Value: 0},
				{Name: "coretemp_load_percent", Value: 0},
			},
		},
		"values are trimmed before parsing": {
			header: "Power",
			record: " 17.25 ",
			wantSamples: []Sample{
				{Name: "coretemp_power", Value: 17.25},
			},
		},
		"record shorter than header": {
			header: "Time,Core #0,Core 0 Temp,Core #1",
			record: "12:00:00,0",
			wantSamples: []Sample{
				{Name: "coretemp_time", Value: 0},
				{Name: "coretemp_core_0", Tags: map[string]string{"core": "core_0"}, Value: 0},
			},
			wantMismatch: true,
		},
		"record longer than header": {
			header: "Time,Power",
			record: "12:00:00,3.5,extra",
			wantSamples: []Sample{
				{Name: "coretemp_time", Value: 0},
				{Name: "coretemp_power", Value: 3.5},
			},
			wantMismatch: true,
		},
	}
	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			got, mismatch := DeriveSamples(test.header, test.record)
			gta.Equal(t, test.wantMismatch, mismatch)
			gta.Assert(t, cmp.DeepEqual(test.wantSamples, got))
		})
	}
}
