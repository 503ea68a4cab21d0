// Package result defines execution results and their display formats.
package result

import (
	"fmt"
	"math"
)

// State is the lifecycle state of one execution.
type State string

const (
	StateIdle      State = "Idle"
	StateCompiling State = "Compiling"
	StateRunning   State = "Running"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
)

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ExecutionResult captures one run stage. A non-zero ExitCode is data, not failure.
type ExecutionResult struct {
	RunID             string  `json:"runId,omitempty"`
	Language          string  `json:"language,omitempty"`
	Stdout            []byte  `json:"stdout"`
	Stderr            []byte  `json:"stderr"`
	ExitCode          int     `json:"exitCode"`
	WallTimeMs        float64 `json:"wallTimeMs"`
	PeakMemoryBytes   uint64  `json:"peakMemoryBytes"`
	ArtifactSizeBytes int64   `json:"artifactSizeBytes"`
}

// Succeeded reports whether the child exited with code 0.
func (r ExecutionResult) Succeeded() bool {
	return r.ExitCode == 0
}

// MemoryKB returns the peak memory in kilobytes.
func (r ExecutionResult) MemoryKB() float64 {
	return float64(r.PeakMemoryBytes) / 1024
}

// ExecutionTimeMs returns the wall time rounded to the nearest millisecond.
func (r ExecutionResult) ExecutionTimeMs() int64 {
	return int64(math.Round(r.WallTimeMs))
}

// FormatMemory renders peak memory as "<KB with 2 decimals> KB".
func FormatMemory(peakBytes uint64) string {
	return fmt.Sprintf("%.2f KB", float64(peakBytes)/1024)
}

// FormatExecutionTime renders wall time as "<rounded ms> ms".
func FormatExecutionTime(wallTimeMs float64) string {
	return fmt.Sprintf("%d ms", int64(math.Round(wallTimeMs)))
}

// FormatFileSize renders an artifact size as "<n> bytes".
func FormatFileSize(size int64) string {
	return fmt.Sprintf("%d bytes", size)
}

// CompileFailure carries the diagnostics of a failed compile stage.
type CompileFailure struct {
	ExitCode int    `json:"exitCode"`
	Stderr   string `json:"stderr"`
}

// Message returns the compiler diagnostics, or a generic line when stderr is empty.
func (c CompileFailure) Message() string {
	if c.Stderr != "" {
		return c.Stderr
	}
	return fmt.Sprintf("Compilation process exited with code %d", c.ExitCode)
}
