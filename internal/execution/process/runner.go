// Package process spawns OS processes and exposes their streams as chunk sequences.
package process

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"

	appErr "coderun/pkg/errors"
)

const (
	chunkSize   = 32 * 1024
	chunkBuffer = 16
)

// Process is a running child as seen by the pipeline.
type Process interface {
	Pid() int
	// Stdin must be closed by the caller once the payload is written.
	Stdin() io.WriteCloser
	// Stdout and Stderr yield chunks in arrival order and close at end of stream.
	Stdout() <-chan []byte
	Stderr() <-chan []byte
	// Done closes after both output streams have closed and the process was reaped.
	Done() <-chan struct{}
	// ExitCode is valid once Done is closed.
	ExitCode() int
}

// Spawner creates processes.
type Spawner interface {
	Spawn(ctx context.Context, command string, args []string) (Process, error)
}

// Runner is the OS-backed Spawner.
type Runner struct{}

// NewRunner creates an OS process runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Spawn starts command with args. Failure to start is a SpawnFailure and is never retried.
func (r *Runner) Spawn(ctx context.Context, command string, args []string) (Process, error) {
	return Start(ctx, command, args)
}

// Handle is a started OS process.
type Handle struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   chan []byte
	stderr   chan []byte
	done     chan struct{}
	exitCode int
	waitErr  error
}

// Start spawns one OS process and begins pumping its output streams.
func Start(ctx context.Context, command string, args []string) (*Handle, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	configureCommand(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, spawnError(command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, spawnError(command, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, spawnError(command, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, spawnError(command, err)
	}

	h := &Handle{
		cmd:    cmd,
		stdin:  &onceCloser{WriteCloser: stdin},
		stdout: make(chan []byte, chunkBuffer),
		stderr: make(chan []byte, chunkBuffer),
		done:   make(chan struct{}),
	}

	var pumps sync.WaitGroup
	pumps.Add(2)
	go pump(stdout, h.stdout, &pumps)
	go pump(stderr, h.stderr, &pumps)
	go func() {
		// Wait must not run before the pipes are fully read.
		pumps.Wait()
		h.waitErr = cmd.Wait()
		h.exitCode = exitCode(h.waitErr, cmd)
		close(h.done)
	}()
	return h, nil
}

func (h *Handle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

func (h *Handle) Stdin() io.WriteCloser { return h.stdin }

func (h *Handle) Stdout() <-chan []byte { return h.stdout }

func (h *Handle) Stderr() <-chan []byte { return h.stderr }

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) ExitCode() int { return h.exitCode }

// WaitError returns the raw error from reaping the process, for diagnostics.
func (h *Handle) WaitError() error {
	<-h.done
	return h.waitErr
}

func pump(r io.Reader, out chan<- []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(out)
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			return
		}
	}
}

func exitCode(err error, cmd *exec.Cmd) int {
	if cmd.ProcessState != nil {
		if code, ok := signalExitCode(cmd.ProcessState); ok {
			return code
		}
		return cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func spawnError(command string, err error) error {
	return appErr.Wrapf(err, appErr.SpawnFailure, "start %s failed: %v", command, err).
		WithDetail("command", command)
}

// onceCloser makes Close idempotent so the stdin pipe is closed exactly once.
type onceCloser struct {
	io.WriteCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.WriteCloser.Close()
	})
	return c.err
}
