package sink

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/zap"

	"coderun/internal/execution/result"
	appErr "coderun/pkg/errors"
	"coderun/pkg/utils/logger"
)

// Local writes the child's stdout to a file and prints a summary to the console.
type Local struct {
	outputPath string
	console    io.Writer
}

// NewLocal creates a local sink. A nil console discards the summary.
func NewLocal(outputPath string, console io.Writer) *Local {
	if console == nil {
		console = io.Discard
	}
	return &Local{outputPath: outputPath, console: console}
}

// Deliver echoes the streams, writes stdout in a single write and prints the
// metrics summary.
func (l *Local) Deliver(ctx context.Context, res result.ExecutionResult) error {
	if len(res.Stdout) > 0 {
		fmt.Fprintf(l.console, "Script output:\n%s\n", res.Stdout)
	}
	if len(res.Stderr) > 0 {
		fmt.Fprintf(l.console, "Script stderr: %s\n", res.Stderr)
	}
	if l.outputPath != "" {
		if err := os.WriteFile(l.outputPath, res.Stdout, 0o644); err != nil {
			ioErr := appErr.Wrapf(err, appErr.IOFailure, "write output file failed: %v", err).
				WithDetail("path", l.outputPath)
			fmt.Fprintf(l.console, "Error writing file: %v\n", err)
			return ioErr
		}
		logger.Debug(ctx, "output written", zap.String("path", l.outputPath), zap.Int("bytes", len(res.Stdout)))
	}

	fmt.Fprintf(l.console, "Maximum memory usage: %.0f kb\n", math.Round(res.MemoryKB()))
	fmt.Fprintf(l.console, "Execution time: %d ms\n", res.ExecutionTimeMs())
	fmt.Fprintf(l.console, "File size: %d bytes\n", res.ArtifactSizeBytes)
	if res.Succeeded() {
		fmt.Fprintln(l.console, "Process executed successfully")
	} else {
		fmt.Fprintf(l.console, "Process exited with code %d\n", res.ExitCode)
	}
	return nil
}

// DeliverError prints a pipeline failure. Compile failures show the compiler diagnostics.
func (l *Local) DeliverError(ctx context.Context, err error) error {
	if appErr.Is(err, appErr.CompilationError) {
		if stderr, ok := appErr.Detail(err, "stderr"); ok && stderr != "" {
			fmt.Fprintf(l.console, "Compile stderr: %v\n", stderr)
		}
		code, _ := appErr.Detail(err, "exit_code")
		fmt.Fprintf(l.console, "Compilation process exited with code %v\n", code)
		return nil
	}
	fmt.Fprintf(l.console, "Error: %v\n", err)
	return nil
}
