// Package runner executes the configured detectors against a run's inputs.
// Every detector gets an exclusive working directory, its own deadline, and
// full failure isolation: one detector crashing, timing out, or emitting
// garbage never interrupts its siblings.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/evd-tools/eve/internal/adapter"
	"github.com/evd-tools/eve/internal/config"
	"github.com/evd-tools/eve/internal/model"
	"github.com/evd-tools/eve/internal/resilience"
)

// ExecError describes a detector process that failed before producing a
// usable artifact. Stage is one of "exit", "timeout", or "artifact".
type ExecError struct {
	Detector model.DetectorID
	Stage    string
	LogPath  string
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("runner: detector %s failed (%s): %v (log: %s)", e.Detector, e.Stage, e.Err, e.LogPath)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Runner fans the enabled detectors out over a run's inputs.
type Runner struct {
	invocations    []config.DetectorInvocation
	configDir      string
	maxConcurrent  int
	defaultTimeout time.Duration
	retry          resilience.RetryConfig
}

// New builds a Runner from resolved detector invocations. maxConcurrent <= 0
// means all detectors run at once.
func New(cfg config.DetectorsConfig, invocations []config.DetectorInvocation) *Runner {
	return &Runner{
		invocations:    invocations,
		configDir:      cfg.ConfigDir,
		maxConcurrent:  cfg.MaxConcurrent,
		defaultTimeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		retry: resilience.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
		},
	}
}

// Run executes every configured detector concurrently and returns one result
// per detector, in the same order as the invocations. A detector failure is
// recorded in its result, never returned: the only error a caller sees from
// the slice itself is via inspecting the per-detector Err fields.
func (r *Runner) Run(ctx context.Context, input model.RunInput, runDir string) []model.DetectorResult {
	results := make([]model.DetectorResult, len(r.invocations))

	g, gctx := errgroup.WithContext(ctx)
	if r.maxConcurrent > 0 {
		g.SetLimit(r.maxConcurrent)
	}

	for i, inv := range r.invocations {
		g.Go(func() error {
			results[i] = r.runOne(gctx, inv, input, runDir)
			return nil
		})
	}

	// Goroutines never return errors; Wait is only a join point.
	_ = g.Wait()

	return results
}

// runOne executes a single detector end to end: expand its command, run the
// process under its deadline, then hand the artifact to its adapter.
func (r *Runner) runOne(ctx context.Context, inv config.DetectorInvocation, input model.RunInput, runDir string) model.DetectorResult {
	start := time.Now()
	result := model.DetectorResult{Detector: inv.Detector}

	log := zap.L().With(zap.String("detector", string(inv.Detector)))

	workDir := filepath.Join(runDir, "vcf", string(inv.Detector))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		result.Err = eris.Wrapf(err, "runner: create workdir for %s", inv.Detector)
		result.Duration = time.Since(start)
		return result
	}

	expanded, err := buildInvocation(inv, expansionContext{
		BAM:        input.BAM,
		Reference:  input.Reference,
		Annotation: input.Annotation,
		ConfigDir:  r.configDir,
		WorkDir:    workDir,
		Output:     filepath.Join(workDir, inv.Output),
	})
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	timeout := r.defaultTimeout
	if inv.TimeoutSecs > 0 {
		timeout = time.Duration(inv.TimeoutSecs) * time.Second
	}

	logPath := filepath.Join(workDir, string(inv.Detector)+".log")

	log.Info("starting detector",
		zap.Strings("argv", expanded.Argv),
		zap.Duration("timeout", timeout),
	)

	execErr := resilience.Do(ctx, withRetryLogging(r.retry, log), func(ctx context.Context) error {
		// A retried attempt starts from a clean slate.
		_ = os.Remove(expanded.Output)
		return runProcess(ctx, expanded, timeout, logPath)
	})
	if execErr != nil {
		_ = os.Remove(expanded.Output)
		result.Err = execErr
		result.Duration = time.Since(start)
		log.Warn("detector failed", zap.Error(execErr), zap.Duration("elapsed", result.Duration))
		return result
	}

	ad, err := adapter.ForDetector(inv.Detector)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	records, err := ad.Parse(expanded.Output)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		log.Warn("detector output unusable", zap.Error(err))
		return result
	}

	result.Records = records
	result.Duration = time.Since(start)
	log.Info("detector finished",
		zap.Int("records", len(records)),
		zap.Duration("elapsed", result.Duration),
	)
	return result
}

// runProcess runs one attempt of the detector command, streaming combined
// output to the detector's log file.
func runProcess(ctx context.Context, inv *Invocation, timeout time.Duration, logPath string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return eris.Wrapf(err, "runner: open log for %s", inv.Detector)
	}
	defer logFile.Close()

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = inv.WorkDir
	cmd.Env = inv.Env
	cmd.Stdout = logFile
	cmd.Stderr = io.MultiWriter(logFile, &stderr)

	if err := cmd.Run(); err != nil {
		stage := "exit"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			stage = "timeout"
		}
		return &ExecError{
			Detector: inv.Detector,
			Stage:    stage,
			LogPath:  logPath,
			Err:      eris.Wrapf(err, "%s", tailOf(&stderr, 512)),
		}
	}

	if _, err := os.Stat(inv.Output); err != nil {
		return &ExecError{
			Detector: inv.Detector,
			Stage:    "artifact",
			LogPath:  logPath,
			Err:      eris.Wrapf(err, "expected artifact %s", inv.Output),
		}
	}

	return nil
}

// withRetryLogging returns cfg with an OnRetry hook that logs each retry.
func withRetryLogging(cfg resilience.RetryConfig, log *zap.Logger) resilience.RetryConfig {
	cfg.OnRetry = func(attempt int, err error) {
		log.Warn("retrying detector after transient failure",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	// Timeouts and missing artifacts are final. Process failures get a
	// second attempt only when the failure looks transient.
	cfg.ShouldRetry = func(err error) bool {
		var execErr *ExecError
		if errors.As(err, &execErr) && execErr.Stage != "exit" {
			return false
		}
		return resilience.IsTransient(err)
	}
	return cfg
}

// tailOf returns at most max bytes from the end of buf, trimmed, for use in
// error messages without dumping a detector's full stderr.
func tailOf(buf *bytes.Buffer, max int) string {
	s := strings.TrimSpace(buf.String())
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	if s == "" {
		s = "no stderr output"
	}
	return s
}
