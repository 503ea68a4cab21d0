// Package server exposes the execution pipeline over a websocket and HTTP.
package server

import (
	"encoding/json"

	"coderun/internal/execution/result"
)

// Event names carried in Envelope.Event.
const (
	EventRun    = "run"
	EventResult = "result"
	EventError  = "error"
	EventStatus = "status"
)

// Envelope is one websocket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RunPayload is the inbound run request. The stdin payload is not caller supplied.
type RunPayload struct {
	Language string `json:"language"`
}

// ResultPayload is the outbound result of a completed run.
type ResultPayload struct {
	RunID          string `json:"runId"`
	Output         string `json:"output"`
	Error          string `json:"error"`
	ExitCode       int    `json:"exitCode"`
	MaxMemoryUsage string `json:"maxMemoryUsage"`
	ExecutionTime  string `json:"executionTime"`
	FileSize       string `json:"fileSize"`
}

// ErrorPayload is the outbound failure of a run or a malformed frame.
type ErrorPayload struct {
	RunID   string `json:"runId,omitempty"`
	Message string `json:"message"`
}

// StatusPayload reports one state transition of a run.
type StatusPayload struct {
	RunID    string       `json:"runId"`
	Language string       `json:"language"`
	State    result.State `json:"state"`
}

// NewResultPayload renders a result in the wire format.
func NewResultPayload(res result.ExecutionResult) ResultPayload {
	return ResultPayload{
		RunID:          res.RunID,
		Output:         string(res.Stdout),
		Error:          string(res.Stderr),
		ExitCode:       res.ExitCode,
		MaxMemoryUsage: result.FormatMemory(res.PeakMemoryBytes),
		ExecutionTime:  result.FormatExecutionTime(res.WallTimeMs),
		FileSize:       result.FormatFileSize(res.ArtifactSizeBytes),
	}
}
