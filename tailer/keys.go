package tailer

import (
	"strconv"
	"strings"
)

const (
	metricPrefix  = "coretemp_"
	defaultMetric = "coretemp_default"
	tempMetric    = "temp"
	coreTag       = "core"
)

var headerReplacer = strings.NewReplacer(
	" ", "_",
	"(", "",
	")", "",
	"%", "percent",
)

// MetricKey is the metric name and optional core tag derived from one CSV column.
type MetricKey struct {
	Name   string
	Prefix string
}

// Sample is a single gauge value ready for the sink.
type Sample struct {
	Name  string
	Tags  map[string]string
	Value float64
}

// keyState carries the running core prefix from column to column within one row.
type keyState struct {
	prefix string
}

// normalizeHeader turns a Core Temp column header into a metric name fragment.
// Characters which are not valid in a Prometheus metric name are dropped, and
// '.' becomes '_'.
func normalizeHeader(header string) string {
	token := headerReplacer.Replace(strings.ToLower(header))
	token = strings.ReplaceAll(token, "._?", "")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r == '.':
			return '_'
		}
		return -1
	}, token)
}

// step classifies one header and returns its key together with the state for
// the next column.
func (s keyState) step(header string) (MetricKey, keyState) {
	token := normalizeHeader(header)

	var (
		name      string
		own       string
		hasOwnTag bool
	)
	switch {
	case strings.HasPrefix(token, "core") && !containsAny(token, "temp", "speed", "load"):
		// Core identifier, e.g. "Core #0": later columns belong to this core.
		s.prefix = token + "_"
		name = metricPrefix + token
	case strings.HasPrefix(token, "core") && strings.Contains(token, "temp"):
		own, hasOwnTag = strings.ReplaceAll(token, "temp", ""), true
		name = tempMetric
	case strings.Contains(token, "cpu_0_power"):
		// Package level reading, not tied to a core.
		name = metricPrefix + token
		s.prefix = ""
	case strings.TrimSpace(token) == "":
		name = defaultMetric
	default:
		name = metricPrefix + token
	}

	prefix := s.prefix
	if hasOwnTag {
		prefix = own
	}
	return MetricKey{
		Name:   trimArtifacts(name),
		Prefix: trimArtifacts(prefix),
	}, s
}

// DeriveKeys maps a row of headers onto metric keys. The running core prefix
// starts empty for every call.
func DeriveKeys(headers []string) []MetricKey {
	keys := make([]MetricKey, 0, len(headers))
	state := keyState{}
	for _, header := range headers {
		var key MetricKey
		key, state = state.step(header)
		keys = append(keys, key)
	}
	return keys
}

// DeriveSamples zips a header line with a record line and derives one sample
// per column. Columns beyond the shorter of the two lines are ignored; the
// second return value reports whether the lengths differed.
func DeriveSamples(headerLine, recordLine string) ([]Sample, bool) {
	headers := strings.Split(headerLine, ",")
	values := strings.Split(recordLine, ",")
	n := min(len(headers), len(values))

	keys := DeriveKeys(headers[:n])
	samples := make([]Sample, 0, n)
	for i, key := range keys {
		samples = append(samples, key.sample(parseValue(values[i])))
	}
	return samples, len(headers) != len(values)
}

func (k MetricKey) sample(value float64) Sample {
	s := Sample{Name: k.Name, Value: value}
	if k.Prefix != "" {
		s.Tags = map[string]string{coreTag: k.Prefix}
	}
	return s
}

// parseValue reads a CSV field as a float, falling back to zero.
func parseValue(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0
	}
	return v
}

// trimArtifacts strips trailing "._" and "_" left behind by header normalization
// until neither remains.
func trimArtifacts(s string) string {
	for {
		t := strings.TrimSuffix(strings.TrimSuffix(s, "._"), "_")
		if t == s {
			return t
		}
		s = t
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
