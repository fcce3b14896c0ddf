package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/LambdaLabs/coretemp_exporter/collector"
	"github.com/LambdaLabs/coretemp_exporter/config"
	"github.com/LambdaLabs/coretemp_exporter/supervisor"
	"github.com/LambdaLabs/coretemp_exporter/tailer"
	"github.com/LambdaLabs/coretemp_exporter/watcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/exporter-toolkit/web"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var (
	webConfig     string
	configFile    string
	listenAddress string
	pprofEnabled  bool
)

var rootCmd = &cobra.Command{
	Use:   "coretemp_exporter",
	Short: "Prometheus exporter for Core Temp CSV logs",
	Long: `coretemp_exporter tails the newest Core Temp CSV log, publishes every column
of its latest record as a Prometheus gauge and, optionally, restarts Core Temp
on a fixed cadence so the log keeps moving.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&webConfig, "web.config-file", "", "Path to web configuration file.")
	rootCmd.Flags().StringVar(&configFile, "config.file", "config.yml", "Path to configuration file.")
	rootCmd.Flags().BoolVar(&pprofEnabled, "pprof.enabled", false, "Enable pprof handler at /debug/pprof")
	rootCmd.Flags().StringVar(&listenAddress, "web.listen-address", ":9091",
		"Address to listen on for web interface and telemetry.")
}

// reloader re-reads the configuration file and applies the new log level.
type reloader struct {
	sc         *config.SafeConfig
	configFile string
	level      *slog.LevelVar
}

func (r *reloader) reload() error {
	if err := r.sc.ReloadConfig(r.configFile); err != nil {
		return err
	}
	r.level.Set(parseLogLevel(r.sc.AppLogLevel()))
	return nil
}

func reloadHandler(r *reloader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost && req.Method != http.MethodPut {
			http.Error(w, "Only PUT and POST methods are allowed", http.StatusBadRequest)
			return
		}
		logger.Info("Triggered configuration reload from /-/reload HTTP endpoint")
		if err := r.reload(); err != nil {
			logger.Error("failed to reload config file", slog.Any("error", err))
			http.Error(w, "failed to reload config file", http.StatusInternalServerError)
			return
		}
		logger.Info("config file reloaded", slog.String("operation", "sc.ReloadConfig"))

		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, "Configuration reloaded successfully!"); err != nil {
			logger.Warn("failed to send configuration reload status message")
		}
	}
}

// Parse the log level from input
func parseLogLevel(level string) slog.Level {
	ret := slog.LevelInfo
	switch level {
	case "debug":
		ret = slog.LevelDebug
	case "info":
		ret = slog.LevelInfo
	case "warn":
		ret = slog.LevelWarn
	case "error":
		ret = slog.LevelError
	default:
		slog.Warn("Invalid loglevel provided. Fallback to default", slog.String("loglevel", level))
	}

	return ret
}

func newMux(registry *prometheus.Registry, r *reloader, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.Handle("/-/reload", reloadHandler(r, logger))

	if pprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		logger.Info("pprof endpoints enabled", slog.Any("endpoint", "/debug/pprof/"))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		// nolint
		w.Write([]byte(`<html>
<head><title>Core Temp Exporter</title></head>
<body>
<h1>Core Temp Exporter</h1>
<p><a href="/metrics">Metrics</a></p>
</body>
</html>`))
	})
	return mux
}

func run(cmd *cobra.Command, _ []string) error {
	slog.Info("Starting coretemp_exporter")

	sc := &config.SafeConfig{Config: &config.Config{}}
	if err := sc.ReloadConfig(configFile); err != nil {
		slog.Error("Error parsing config file", slog.Any("error", err))
		return err
	}

	level := &slog.LevelVar{}
	level.Set(parseLogLevel(sc.AppLogLevel()))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("Config successfully parsed", slog.String("loglevel", level.Level().String()))

	r := &reloader{sc: sc, configFile: configFile, level: level}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SIGHUP reloads the configuration in place.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := r.reload(); err != nil {
					logger.Error("failed to reload config file", slog.Any("error", err))
					continue
				}
				logger.Info("config file reload", slog.String("operation", "sc.ReloadConfig"))
			}
		}
	}()

	store := collector.NewGaugeStore(logger)
	metrics := collector.NewExporterMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		store,
		metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	wg := &sync.WaitGroup{}
	t := tailer.New(sc, store, metrics, logger)

	if sc.TailerSettings().Watch {
		ct := sc.CoreTempSettings()
		w, err := watcher.New(ct.LogPath, ct.LogPattern, logger)
		if err != nil {
			logger.Warn("file watching disabled, polling only", slog.Any("error", err))
		} else {
			t.WithWakeup(w.Changes)
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Start(ctx)
			}()
		}
	}

	if sc.SupervisorSettings().Enabled {
		s := supervisor.New(sc, metrics, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Run(ctx)
		}()
	} else {
		logger.Info("supervisor disabled")
	}

	tailerErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		tailerErr <- t.Run(ctx)
	}()

	srv := &http.Server{Handler: newMux(registry, r, logger)}
	flagConfig := web.FlagConfig{
		WebListenAddresses: &([]string{listenAddress}),
		WebConfigFile:      &webConfig,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Exporter started", slog.String("listenAddress", listenAddress))
		if err := web.ListenAndServe(srv, &flagConfig, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-tailerErr:
		if err != nil {
			logger.Error("tailer stopped on a configuration error", slog.Any("error", err))
			runErr = err
		}
	case err := <-serverErr:
		logger.Error("http server failed", slog.Any("error", err))
		runErr = err
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	wg.Wait()

	return runErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
