package server

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"coderun/internal/execution/pipeline"
	"coderun/internal/execution/registry"
	"coderun/internal/execution/result"
	"coderun/internal/execution/sink"
	appErr "coderun/pkg/errors"
	"coderun/pkg/utils/contextkey"
	"coderun/pkg/utils/logger"
)

// DefaultInput is the stdin payload every service run receives.
const DefaultInput = "入力データ"

const defaultQueueWait = 2 * time.Second

// Executor runs one pipeline request.
type Executor interface {
	Execute(ctx context.Context, req pipeline.Request) (result.ExecutionResult, error)
}

// ResultRecorder persists completed results.
type ResultRecorder interface {
	SaveResult(ctx context.Context, res result.ExecutionResult) error
}

// Output receives the outcome and state transitions of one run.
type Output interface {
	sink.Sink
	pipeline.StatusReporter
}

// RunConfig holds RunService dependencies and settings.
type RunConfig struct {
	Executor  Executor
	Resolver  registry.Resolver
	History   ResultRecorder
	WorkDir   string
	ScriptDir string
	Input     string
	// MaxConcurrent bounds simultaneous runs; 0 means unbounded.
	MaxConcurrent int
	QueueWait     time.Duration
}

// RunService stages input and drives one pipeline call per run request.
type RunService struct {
	executor  Executor
	resolver  registry.Resolver
	history   ResultRecorder
	workDir   string
	scriptDir string
	input     []byte
	sem       chan struct{}
	queueWait time.Duration
}

// NewRunService validates cfg and creates the service.
func NewRunService(cfg RunConfig) (*RunService, error) {
	if cfg.Executor == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("executor is required")
	}
	if cfg.Resolver == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("language resolver is required")
	}
	if cfg.WorkDir == "" {
		return nil, appErr.ValidationError("service.workDir", "required")
	}
	input := cfg.Input
	if input == "" {
		input = DefaultInput
	}
	queueWait := cfg.QueueWait
	if queueWait <= 0 {
		queueWait = defaultQueueWait
	}
	s := &RunService{
		executor:  cfg.Executor,
		resolver:  cfg.Resolver,
		history:   cfg.History,
		workDir:   cfg.WorkDir,
		scriptDir: cfg.ScriptDir,
		input:     []byte(input),
		queueWait: queueWait,
	}
	if cfg.MaxConcurrent > 0 {
		s.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return s, nil
}

// Run executes languageID and delivers exactly one outcome to out.
// The language is resolved before any file is touched.
func (s *RunService) Run(ctx context.Context, runID, languageID string, out Output) {
	ctx = context.WithValue(ctx, contextkey.RunID, runID)
	ctx = context.WithValue(ctx, contextkey.Language, languageID)

	lang, err := s.resolver.Resolve(ctx, languageID)
	if err != nil {
		s.deliver(ctx, out, result.ExecutionResult{}, err)
		return
	}

	if err := s.acquireSlot(ctx); err != nil {
		s.deliver(ctx, out, result.ExecutionResult{}, err)
		return
	}
	defer s.releaseSlot()

	stdin, err := s.stageInput(ctx, runID)
	if err != nil {
		s.deliver(ctx, out, result.ExecutionResult{}, err)
		return
	}

	res, err := s.executor.Execute(ctx, pipeline.Request{
		RunID:      runID,
		LanguageID: lang.ID,
		SourcePath: filepath.Join(s.scriptDir, lang.SourceFile),
		Stdin:      stdin,
		Reporter:   out,
	})
	if err == nil && s.history != nil {
		if saveErr := s.history.SaveResult(ctx, res); saveErr != nil {
			logger.Warn(ctx, "save run history failed", zap.Error(saveErr))
		}
	}
	s.deliver(ctx, out, res, err)
}

func (s *RunService) deliver(ctx context.Context, out Output, res result.ExecutionResult, err error) {
	if deliverErr := sink.Dispatch(ctx, out, res, err); deliverErr != nil {
		logger.Warn(ctx, "deliver run outcome failed", zap.Error(deliverErr))
	}
}

// stageInput writes the fixed input to a per-run file and reads it back, so the
// child sees exactly what was persisted. The file is removed afterwards.
func (s *RunService) stageInput(ctx context.Context, runID string) ([]byte, error) {
	path := filepath.Join(s.workDir, "input-"+runID+".txt")
	if err := os.WriteFile(path, s.input, 0o644); err != nil {
		return nil, appErr.Wrapf(err, appErr.IOFailure, "Error writing input file").WithDetail("path", path)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Debug(ctx, "remove staged input failed", zap.String("path", path), zap.Error(err))
		}
	}()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.IOFailure, "Error reading input file").WithDetail("path", path)
	}
	return data, nil
}

func (s *RunService) acquireSlot(ctx context.Context) error {
	if s.sem == nil {
		return nil
	}
	timer := time.NewTimer(s.queueWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return appErr.Wrapf(ctx.Err(), appErr.ServiceUnavailable, "service is shutting down")
	case <-timer.C:
		return appErr.New(appErr.WorkerPoolFull).WithMessage("worker pool is full")
	}
}

func (s *RunService) releaseSlot() {
	if s.sem == nil {
		return
	}
	select {
	case <-s.sem:
	default:
	}
}
