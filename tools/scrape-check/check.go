// scrape-check scrapes a running coretemp_exporter and reports scrape
// latency, the gauges it found and how fresh the exported record is.
package main

import (
	"flag"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const (
	cyclesMetric     = "coretemp_exporter_cycles_total"
	lastRecordMetric = "coretemp_exporter_last_record_timestamp_seconds"
	tempMetric       = "temp"
)

// ScrapeResult holds the results of a scrape
type ScrapeResult struct {
	Duration     time.Duration
	MetricsCount int
	Gauges       int                // Series read from Core Temp logs
	Cycles       map[string]float64 // By result label
	CoreTemps    map[string]float64 // By core label
	LastRecord   time.Time
	Error        error
}

// Config holds the configuration for the check
type Config struct {
	Endpoint string
	Runs     int
	MaxAge   time.Duration
	Verbose  bool
}

func main() {
	var config Config

	flag.StringVar(&config.Endpoint, "endpoint", "http://localhost:9091", "coretemp_exporter endpoint")
	flag.IntVar(&config.Runs, "runs", 1, "Number of scrape runs to perform")
	flag.DurationVar(&config.MaxAge, "max-age", time.Minute, "Oldest acceptable exported record")
	flag.BoolVar(&config.Verbose, "verbose", false, "Verbose output")
	flag.Parse()

	if config.Runs < 1 {
		fmt.Fprintf(os.Stderr, "Error: -runs must be at least 1\n")
		flag.Usage()
		os.Exit(1)
	}

	results := make([]ScrapeResult, 0, config.Runs)
	for i := 0; i < config.Runs; i++ {
		if config.Runs > 1 {
			fmt.Printf("Run %d/%d: ", i+1, config.Runs)
		}
		result := performScrape(http.DefaultClient, config.Endpoint)
		results = append(results, result)

		if result.Error != nil {
			fmt.Printf("ERROR: %v\n", result.Error)
			continue
		}
		fmt.Printf("Duration: %v, Metrics: %d, Core Temp gauges: %d\n",
			result.Duration, result.MetricsCount, result.Gauges)
		if config.Verbose {
			for _, core := range slices.Sorted(maps.Keys(result.CoreTemps)) {
				fmt.Printf("  %s: %.1f\n", core, result.CoreTemps[core])
			}
		}
	}

	if !printSummary(os.Stdout, results, config, time.Now()) {
		os.Exit(1)
	}
}

func performScrape(client *http.Client, endpoint string) ScrapeResult {
	result := ScrapeResult{
		Cycles:    map[string]float64{},
		CoreTemps: map[string]float64{},
	}

	start := time.Now()
	resp, err := client.Get(strings.TrimSuffix(endpoint, "/") + "/metrics")
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("failed to scrape: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		result.Error = fmt.Errorf("scrape failed with status %d: %s", resp.StatusCode, string(body))
		return result
	}

	parser := expfmt.TextParser{}
	metricFamilies, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		result.Error = fmt.Errorf("failed to parse metrics: %w", err)
		return result
	}

	for name, mf := range metricFamilies {
		result.MetricsCount += len(mf.Metric)

		switch {
		case name == cyclesMetric:
			for _, metric := range mf.Metric {
				result.Cycles[labelValue(metric, "result")] = metric.GetCounter().GetValue()
			}
		case name == lastRecordMetric:
			for _, metric := range mf.Metric {
				if v := metric.GetGauge().GetValue(); v > 0 {
					result.LastRecord = time.Unix(int64(v), 0)
				}
			}
		case name == tempMetric || (strings.HasPrefix(name, "coretemp_") && !strings.HasPrefix(name, "coretemp_exporter_")):
			result.Gauges += len(mf.Metric)
			if name == tempMetric {
				for _, metric := range mf.Metric {
					result.CoreTemps[labelValue(metric, "core")] = metric.GetGauge().GetValue()
				}
			}
		}
	}

	return result
}

// printSummary writes the summary and reports whether the exporter looks healthy.
func printSummary(w io.Writer, results []ScrapeResult, config Config, now time.Time) bool {
	fmt.Fprintln(w, "\n=== Scrape Summary ===")

	var ok []ScrapeResult
	for _, r := range results {
		if r.Error == nil {
			ok = append(ok, r)
		}
	}
	if len(ok) == 0 {
		fmt.Fprintln(w, "✗ No successful scrapes")
		fmt.Fprintf(w, "  Is the exporter listening on %s?\n", config.Endpoint)
		return false
	}

	durations := make([]time.Duration, 0, len(ok))
	for _, r := range ok {
		durations = append(durations, r.Duration)
	}
	slices.Sort(durations)
	fmt.Fprintf(w, "Successful scrapes: %d/%d\n", len(ok), len(results))
	fmt.Fprintf(w, "Min duration: %v\n", durations[0])
	fmt.Fprintf(w, "Max duration: %v\n", durations[len(durations)-1])

	last := ok[len(ok)-1]
	fmt.Fprintf(w, "Cycles: ok=%.0f no_data=%.0f error=%.0f\n",
		last.Cycles["ok"], last.Cycles["no_data"], last.Cycles["error"])

	healthy := true
	if last.Gauges == 0 {
		fmt.Fprintln(w, "✗ No Core Temp gauges exported yet")
		fmt.Fprintln(w, "  • Check coretemp.log_path and coretemp.log_pattern")
		fmt.Fprintln(w, "  • Check that Core Temp logging is enabled")
		healthy = false
	} else {
		fmt.Fprintf(w, "✓ %d Core Temp gauges, %d core temperatures\n", last.Gauges, len(last.CoreTemps))
	}

	switch {
	case last.LastRecord.IsZero():
		fmt.Fprintln(w, "✗ No record has been exported")
		healthy = false
	case now.Sub(last.LastRecord) > config.MaxAge:
		fmt.Fprintf(w, "⚠ STALE: latest record is %v old (limit %v)\n", now.Sub(last.LastRecord).Round(time.Second), config.MaxAge)
		fmt.Fprintln(w, "  • Is the supervisor enabled and Core Temp running?")
		healthy = false
	default:
		fmt.Fprintf(w, "✓ Latest record is %v old\n", now.Sub(last.LastRecord).Round(time.Second))
	}
	return healthy
}

func labelValue(metric *dto.Metric, name string) string {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}

