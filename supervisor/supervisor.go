// Package supervisor keeps Core Temp writing fresh log records by starting it,
// letting it run for a fixed window and then killing its whole process tree.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/LambdaLabs/coretemp_exporter/collector"
	"github.com/LambdaLabs/coretemp_exporter/config"
	"github.com/shirou/gopsutil/v3/process"
)

// exitTimeout bounds how long release waits for a killed process to be reaped.
const exitTimeout = 5 * time.Second

// Settings supplies the configuration sections read before every launch.
type Settings interface {
	CoreTempSettings() config.CoreTempConfig
	SupervisorSettings() config.SupervisorConfig
}

// Supervisor restarts Core Temp on a fixed cadence.
type Supervisor struct {
	settings Settings
	metrics  *collector.ExporterMetrics
	logger   *slog.Logger
}

// New returns a *Supervisor.
func New(settings Settings, metrics *collector.ExporterMetrics, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		settings: settings,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "supervisor")),
	}
}

// stageError attributes a failure to the launch or terminate step.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

// Run launches, holds and terminates Core Temp until ctx is cancelled.
// Failures are logged and never end the loop.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("supervisor started")
	for {
		if err := s.runOnce(ctx); err != nil {
			s.logger.Error("supervisor cycle failed", slog.Any("error", err))
		}
		if ctx.Err() != nil {
			s.logger.Info("supervisor stopped")
			return nil
		}
	}
}

// runOnce performs a single launch, hold and release. The window is waited
// even when the launch fails so a broken executable path cannot spin.
func (s *Supervisor) runOnce(ctx context.Context) (err error) {
	ct := s.settings.CoreTempSettings()
	window := s.settings.SupervisorSettings().RunWindow

	sess, err := s.acquire(ct)
	if err != nil {
		s.metrics.SupervisorFailures.WithLabelValues(collector.StageLaunch).Inc()
		hold(ctx, window)
		return &stageError{stage: collector.StageLaunch, err: err}
	}
	defer func() {
		if rerr := sess.release(); rerr != nil {
			s.metrics.SupervisorFailures.WithLabelValues(collector.StageTerminate).Inc()
			err = errors.Join(err, &stageError{stage: collector.StageTerminate, err: rerr})
		}
	}()

	hold(ctx, window)
	return nil
}

// session is one running Core Temp process.
type session struct {
	cmd    *exec.Cmd
	done   chan struct{}
	logger *slog.Logger
}

func (s *Supervisor) acquire(ct config.CoreTempConfig) (*session, error) {
	path := filepath.Join(ct.LogPath, ct.Executable)
	cmd := exec.Command(path)
	cmd.Dir = ct.LogPath
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}
	s.metrics.SupervisorLaunches.Inc()

	sess := &session{
		cmd:    cmd,
		done:   make(chan struct{}),
		logger: s.logger.With(slog.Int("pid", cmd.Process.Pid)),
	}
	go func() {
		_ = cmd.Wait()
		close(sess.done)
	}()
	sess.logger.Info("core temp launched", slog.String("executable", path))
	return sess, nil
}

func hold(ctx context.Context, window time.Duration) {
	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// release kills the process and every descendant, deepest first, then waits
// for the process to be reaped. A process that already exited is left alone.
func (s *session) release() error {
	select {
	case <-s.done:
		s.logger.Info("core temp exited before the end of its window")
		return nil
	default:
	}

	var errs []error
	root, err := process.NewProcess(int32(s.cmd.Process.Pid))
	if err == nil {
		for _, p := range descendants(root, s.logger) {
			if err := p.Kill(); err != nil && alive(p.Pid) {
				errs = append(errs, fmt.Errorf("kill descendant %d: %w", p.Pid, err))
			}
		}
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		errs = append(errs, fmt.Errorf("kill %d: %w", s.cmd.Process.Pid, err))
	}

	select {
	case <-s.done:
	case <-time.After(exitTimeout):
		errs = append(errs, fmt.Errorf("process %d did not exit within %s", s.cmd.Process.Pid, exitTimeout))
	}
	if len(errs) == 0 {
		s.logger.Info("core temp terminated")
	}
	return errors.Join(errs...)
}

// descendants lists the process tree below p in post-order, so children come
// before their parents.
func descendants(p *process.Process, logger *slog.Logger) []*process.Process {
	children, err := p.Children()
	if err != nil {
		if !errors.Is(err, process.ErrorNoChildren) {
			logger.Debug("listing child processes failed", slog.Int("parent", int(p.Pid)), slog.Any("error", err))
		}
		return nil
	}
	var out []*process.Process
	for _, child := range children {
		out = append(out, descendants(child, logger)...)
		out = append(out, child)
	}
	return out
}

func alive(pid int32) bool {
	ok, err := process.PidExists(pid)
	return err == nil && ok
}
