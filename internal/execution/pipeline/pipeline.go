// Package pipeline drives one execution through compile and run stages.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coderun/internal/execution/observer"
	"coderun/internal/execution/process"
	"coderun/internal/execution/profile"
	"coderun/internal/execution/registry"
	"coderun/internal/execution/result"
	"coderun/internal/execution/sampler"
	appErr "coderun/pkg/errors"
	"coderun/pkg/utils/contextkey"
	"coderun/pkg/utils/logger"
)

// Request describes one execution.
type Request struct {
	RunID      string
	LanguageID string
	SourcePath string
	Stdin      []byte
	// Reporter, when set, is notified in addition to the pipeline-wide reporter.
	Reporter StatusReporter
}

// Config holds pipeline dependencies.
type Config struct {
	Resolver       registry.Resolver
	Spawner        process.Spawner
	MemoryReader   sampler.MemoryReader
	SampleInterval time.Duration
	Reporter       StatusReporter
	Metrics        observer.MetricsRecorder
}

// Pipeline executes requests. It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	resolver       registry.Resolver
	spawner        process.Spawner
	memory         sampler.MemoryReader
	sampleInterval time.Duration
	reporter       StatusReporter
	metrics        observer.MetricsRecorder
}

// New creates a pipeline. A nil MemoryReader falls back to /proc; when that is
// unavailable runs report a peak memory of 0.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Resolver == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("language resolver is required")
	}
	spawner := cfg.Spawner
	if spawner == nil {
		spawner = process.NewRunner()
	}
	memory := cfg.MemoryReader
	if memory == nil {
		reader, err := sampler.NewProcReader()
		if err != nil {
			logger.Warn(context.Background(), "proc filesystem unavailable, memory sampling disabled", zap.Error(err))
		} else {
			memory = reader
		}
	}
	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = sampler.DefaultInterval
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &Pipeline{
		resolver:       cfg.Resolver,
		spawner:        spawner,
		memory:         memory,
		sampleInterval: interval,
		reporter:       cfg.Reporter,
		metrics:        metrics,
	}, nil
}

// Execute resolves the language, compiles when needed and runs the artifact.
// Only LanguageNotSupported, SpawnFailure, CompilationError and IOFailure are
// returned as errors; a non-zero exit of the child is part of the result.
func (p *Pipeline) Execute(ctx context.Context, req Request) (result.ExecutionResult, error) {
	ctx = context.WithValue(ctx, contextkey.Language, req.LanguageID)
	if req.RunID != "" {
		ctx = context.WithValue(ctx, contextkey.RunID, req.RunID)
	}

	lang, err := p.resolver.Resolve(ctx, req.LanguageID)
	if err != nil {
		return result.ExecutionResult{}, p.fail(ctx, req, err)
	}

	runPath := req.SourcePath
	if lang.NeedsCompilation {
		p.report(ctx, req, result.StateCompiling, nil)
		if err := p.compile(ctx, lang, req.SourcePath); err != nil {
			return result.ExecutionResult{}, p.fail(ctx, req, err)
		}
		runPath = lang.BinaryPath(req.SourcePath)
	}

	p.report(ctx, req, result.StateRunning, nil)
	res, err := p.run(ctx, lang, runPath, req)
	if err != nil {
		return result.ExecutionResult{}, p.fail(ctx, req, err)
	}

	p.metrics.ObserveRun(ctx, lang.ID, res.ExitCode, res.WallTimeMs, res.MemoryKB())
	logger.Info(ctx, "execution completed",
		zap.Int("exit_code", res.ExitCode),
		zap.Float64("wall_time_ms", res.WallTimeMs),
		zap.Uint64("peak_memory_bytes", res.PeakMemoryBytes),
		zap.Int64("artifact_size_bytes", res.ArtifactSizeBytes),
	)
	p.report(ctx, req, result.StateCompleted, nil)
	return res, nil
}

func (p *Pipeline) compile(ctx context.Context, lang profile.Language, sourcePath string) error {
	command, args := lang.CompileInvocation(sourcePath)
	start := time.Now()
	proc, err := p.spawner.Spawn(ctx, command, args)
	if err != nil {
		return err
	}
	_ = proc.Stdin().Close()

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return accumulate(proc.Stdout(), &stdout) })
	g.Go(func() error { return accumulate(proc.Stderr(), &stderr) })
	_ = g.Wait()
	<-proc.Done()
	elapsed := millisSince(start)

	if stdout.Len() > 0 {
		logger.Info(ctx, "compile stdout", zap.String("stdout", stdout.String()))
	}
	exitCode := proc.ExitCode()
	p.metrics.ObserveCompile(ctx, lang.ID, exitCode == 0, elapsed)
	if exitCode != 0 {
		failure := result.CompileFailure{ExitCode: exitCode, Stderr: stderr.String()}
		return appErr.New(appErr.CompilationError).
			WithMessage(failure.Message()).
			WithDetail("exit_code", exitCode).
			WithDetail("stderr", failure.Stderr)
	}
	if stderr.Len() > 0 {
		logger.Debug(ctx, "compile stderr", zap.String("stderr", stderr.String()))
	}
	logger.Debug(ctx, "compile finished", zap.Float64("compile_time_ms", elapsed))
	return nil
}

func (p *Pipeline) run(ctx context.Context, lang profile.Language, runPath string, req Request) (result.ExecutionResult, error) {
	command, args := lang.RunInvocation(runPath)
	start := time.Now()
	proc, err := p.spawner.Spawn(ctx, command, args)
	if err != nil {
		return result.ExecutionResult{}, err
	}

	var mem *sampler.Sampler
	if p.memory != nil {
		mem = sampler.Start(ctx, proc.Pid(), p.sampleInterval, p.memory)
	}

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return writeStdin(ctx, proc.Stdin(), req.Stdin) })
	g.Go(func() error { return accumulate(proc.Stdout(), &stdout) })
	g.Go(func() error { return accumulate(proc.Stderr(), &stderr) })
	streamErr := g.Wait()
	<-proc.Done()

	var peak uint64
	if mem != nil {
		mem.Stop()
		peak = mem.Peak()
		if err := mem.Err(); err != nil && !sampler.ProcessGone(mem.PID(), err) {
			logger.Debug(ctx, "memory sampling stopped early", zap.Error(err))
		}
	}
	wall := millisSince(start)

	if streamErr != nil {
		return result.ExecutionResult{}, streamErr
	}

	info, err := os.Stat(req.SourcePath)
	if err != nil {
		return result.ExecutionResult{}, appErr.Wrapf(err, appErr.IOFailure, "stat %s failed: %v", req.SourcePath, err).
			WithDetail("path", req.SourcePath)
	}

	return result.ExecutionResult{
		RunID:             req.RunID,
		Language:          lang.ID,
		Stdout:            stdout.Bytes(),
		Stderr:            stderr.Bytes(),
		ExitCode:          proc.ExitCode(),
		WallTimeMs:        wall,
		PeakMemoryBytes:   peak,
		ArtifactSizeBytes: info.Size(),
	}, nil
}

// writeStdin writes the payload and closes stdin exactly once. A child that
// exits without reading its input is not an error.
func writeStdin(ctx context.Context, stdin io.WriteCloser, payload []byte) error {
	defer stdin.Close()
	if len(payload) == 0 {
		return nil
	}
	if _, err := stdin.Write(payload); err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
			logger.Debug(ctx, "child closed stdin before payload was written", zap.Error(err))
			return nil
		}
		return appErr.Wrapf(err, appErr.IOFailure, "write stdin failed: %v", err)
	}
	return nil
}

func accumulate(chunks <-chan []byte, buf *bytes.Buffer) error {
	for chunk := range chunks {
		buf.Write(chunk)
	}
	return nil
}

func millisSince(start time.Time) float64 {
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (p *Pipeline) fail(ctx context.Context, req Request, err error) error {
	p.metrics.ObserveFailure(ctx, req.LanguageID, failureReason(err))
	logger.Warn(ctx, "execution failed", zap.Error(err))
	p.report(ctx, req, result.StateFailed, err)
	return err
}

func (p *Pipeline) report(ctx context.Context, req Request, state result.State, err error) {
	update := StatusUpdate{RunID: req.RunID, Language: req.LanguageID, State: state, Err: err}
	for _, r := range []StatusReporter{p.reporter, req.Reporter} {
		if r == nil {
			continue
		}
		if reportErr := r.ReportStatus(ctx, update); reportErr != nil {
			logger.Warn(ctx, "report status failed", zap.String("state", string(state)), zap.Error(reportErr))
		}
	}
}

func failureReason(err error) string {
	switch appErr.GetCode(err) {
	case appErr.LanguageNotSupported:
		return "language_not_supported"
	case appErr.SpawnFailure:
		return "spawn_failure"
	case appErr.CompilationError:
		return "compilation_error"
	case appErr.IOFailure:
		return "io_failure"
	default:
		return "internal"
	}
}
