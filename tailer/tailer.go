package tailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LambdaLabs/coretemp_exporter/collector"
	"github.com/LambdaLabs/coretemp_exporter/config"
	"github.com/LambdaLabs/coretemp_exporter/dateformat"
)

// Sink receives gauge samples. A later write for the same name and tags
// replaces the earlier one.
type Sink interface {
	SetGauge(name string, tags map[string]string, value float64)
}

// Settings supplies the configuration sections the tailer reads every cycle.
type Settings interface {
	CoreTempSettings() config.CoreTempConfig
	TailerSettings() config.TailerConfig
}

// Tailer periodically exports the latest record of the newest Core Temp log.
type Tailer struct {
	settings Settings
	sink     Sink
	metrics  *collector.ExporterMetrics
	logger   *slog.Logger
	wake     <-chan struct{}
	location *time.Location
}

// New returns a *Tailer. Timestamps are parsed in the local time zone, the
// zone Core Temp writes them in.
func New(settings Settings, sink Sink, metrics *collector.ExporterMetrics, logger *slog.Logger) *Tailer {
	return &Tailer{
		settings: settings,
		sink:     sink,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "tailer")),
		location: time.Local,
	}
}

// WithWakeup makes the tailer start a cycle as soon as ch receives, without
// waiting for the interval to elapse.
func (t *Tailer) WithWakeup(ch <-chan struct{}) {
	t.wake = ch
}

// IsConfigError reports whether err should stop the tailer.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrLogDirectoryMissing) || errors.Is(err, dateformat.ErrUnsupported)
}

// Run executes cycles until ctx is cancelled. Configuration errors end the
// loop and are returned; every other failure is logged and retried on the
// next cycle.
func (t *Tailer) Run(ctx context.Context) error {
	t.logger.Info("tailer started")
	for {
		settings := t.settings.TailerSettings()
		delay := settings.Interval

		_, err := t.Cycle()
		switch {
		case err == nil:
			t.metrics.Cycles.WithLabelValues(collector.ResultOK).Inc()
		case IsConfigError(err):
			t.metrics.Cycles.WithLabelValues(collector.ResultError).Inc()
			return err
		case errors.Is(err, ErrNoData):
			t.metrics.Cycles.WithLabelValues(collector.ResultNoData).Inc()
			t.logger.Info("no data", slog.Any("reason", err))
			delay = settings.NoDataDelay
		default:
			t.metrics.Cycles.WithLabelValues(collector.ResultError).Inc()
			t.logger.Error("tailer cycle failed", slog.Any("error", err))
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.logger.Info("tailer stopped")
			return nil
		case <-timer.C:
		case <-t.wake:
			timer.Stop()
		}
	}
}

// Cycle selects the newest log, extracts its latest record and publishes one
// gauge per column. The published samples are returned.
func (t *Tailer) Cycle() ([]Sample, error) {
	ct := t.settings.CoreTempSettings()

	layout, err := dateformat.Layout(ct.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("coretemp.date_format: %w", err)
	}

	logFile, err := FindLatestLog(ct.LogPath, ct.LogPattern)
	if err != nil {
		return nil, err
	}
	logger := t.logger.With(slog.String("file", logFile.Path))

	snapshot, err := ScanLog(logFile.Path, layout, t.location)
	if err != nil {
		return nil, err
	}
	if !snapshot.Complete() {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteLog, logFile.Path)
	}

	samples, mismatch := DeriveSamples(snapshot.Header, snapshot.Record)
	if mismatch {
		t.metrics.HeaderMismatches.Inc()
		logger.Warn("header mismatch, exporting the columns present in both",
			slog.Int("columns", len(samples)))
	}

	for _, s := range samples {
		t.sink.SetGauge(s.Name, s.Tags, s.Value)
		logger.Debug("gauge updated",
			slog.String("metric", s.Name),
			slog.Any("tags", s.Tags),
			slog.Float64("value", s.Value))
	}
	t.metrics.LastRecordTimestamp.Set(float64(snapshot.Timestamp.Unix()))
	t.metrics.SamplesPublished.Set(float64(len(samples)))

	return samples, nil
}
