package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coderun/internal/execution/pipeline"
	"coderun/internal/execution/result"
	"coderun/internal/execution/sink"
	appErr "coderun/pkg/errors"
	"coderun/pkg/utils/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one program locally",
	Long: `Compile (when needed) and run one program.

The input file is sent to the program on stdin and its stdout is written to
the output file. The console echoes the program's streams and a summary:

  Script output:
  <stdout>
  Script stderr: <stderr>
  Maximum memory usage: <kb> kb
  Execution time: <ms> ms
  File size: <bytes> bytes
  Process executed successfully | Process exited with code <n>

The program's exit code is reported, not returned: coderun exits 0 even when
the program fails.`,
	Args: cobra.NoArgs,
	RunE: runLocal,
}

func init() {
	runCmd.Flags().StringP("lang", "l", "", "Language id, e.g. python, cpp (required)")
	runCmd.Flags().String("source", "", "Source file (default: <scriptDir>/<language source file>)")
	runCmd.Flags().String("input", "input.txt", "File sent to the program on stdin")
	runCmd.Flags().String("output", "output.txt", "File receiving the program's stdout")
	_ = runCmd.MarkFlagRequired("lang")
	rootCmd.AddCommand(runCmd)
}

func runLocal(cmd *cobra.Command, args []string) error {
	langID, _ := cmd.Flags().GetString("lang")
	sourcePath, _ := cmd.Flags().GetString("source")
	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")

	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}
	// stdout carries the summary
	cfg.Logger.OutputPath = "stderr"
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	reg, err := buildRegistry(cfg.Languages)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lang, err := reg.Resolve(ctx, langID)
	if err != nil {
		return err
	}
	if sourcePath == "" {
		sourcePath = filepath.Join(cfg.Service.ScriptDir, lang.SourceFile)
	}

	console := cmd.OutOrStdout()
	out := sink.NewLocal(outputPath, console)
	input, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(console, "Error reading file: %v\n", err)
		logger.Warn(ctx, "read input file failed", zap.String("path", inputPath), zap.Error(err))
		return nil
	}

	pipe, err := pipeline.New(pipeline.Config{
		Resolver:       reg,
		SampleInterval: cfg.Execution.SampleInterval,
	})
	if err != nil {
		return err
	}
	res, err := pipe.Execute(ctx, pipeline.Request{
		RunID:      uuid.NewString(),
		LanguageID: lang.ID,
		SourcePath: sourcePath,
		Stdin:      input,
		Reporter:   compileNotice(console, lang.NeedsCompilation),
	})
	if deliverErr := sink.Dispatch(ctx, out, res, err); deliverErr != nil && !appErr.Is(deliverErr, appErr.IOFailure) {
		return deliverErr
	}
	return nil
}

// compileNotice prints a line once a compiled language leaves the compile stage.
func compileNotice(console io.Writer, compiled bool) pipeline.StatusReporter {
	return pipeline.StatusReporterFunc(func(ctx context.Context, update pipeline.StatusUpdate) error {
		if compiled && update.State == result.StateRunning {
			fmt.Fprintln(console, "Compilation successful")
		}
		return nil
	})
}
