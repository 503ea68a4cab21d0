package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"coderun/internal/execution/result"
	"coderun/internal/history"
	appErr "coderun/pkg/errors"
	"coderun/pkg/utils/response"
)

// HistoryReader reads stored runs.
type HistoryReader interface {
	Get(ctx context.Context, runID string) (history.Record, error)
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// RunView is the HTTP representation of a stored run.
type RunView struct {
	RunID     string         `json:"runId"`
	Language  string         `json:"language"`
	State     result.State   `json:"state"`
	Error     string         `json:"error,omitempty"`
	Result    *ResultPayload `json:"result,omitempty"`
	CreatedAt int64          `json:"createdAt"`
	UpdatedAt int64          `json:"updatedAt"`
}

func newRunView(rec history.Record) RunView {
	view := RunView{
		RunID:     rec.RunID,
		Language:  rec.Language,
		State:     rec.State,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Result != nil {
		payload := NewResultPayload(*rec.Result)
		view.Result = &payload
	}
	return view
}

// RunsController serves run history.
type RunsController struct {
	store HistoryReader
}

// NewRunsController creates a new controller.
func NewRunsController(store HistoryReader) *RunsController {
	return &RunsController{store: store}
}

// GetRun returns one run by id.
func (h *RunsController) GetRun(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("id"))
	if runID == "" {
		response.BadRequest(c, "Invalid run id")
		return
	}
	rec, err := h.store.Get(c.Request.Context(), runID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newRunView(rec))
}

// ListRuns returns the most recent runs, newest first.
func (h *RunsController) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(c, appErr.ValidationError("limit", "must be a positive integer"))
			return
		}
		limit = n
	}
	recs, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]RunView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newRunView(rec))
	}
	response.Success(c, views)
}

// Pinger checks a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController reports liveness and the languages on offer.
type HealthController struct {
	languages []string
	deps      map[string]Pinger
}

// NewHealthController creates a health controller. deps may be empty.
func NewHealthController(languages []string, deps map[string]Pinger) *HealthController {
	return &HealthController{languages: languages, deps: deps}
}

// Health pings every dependency and reports 503 when one is down.
func (h *HealthController) Health(c *gin.Context) {
	for name, dep := range h.deps {
		if err := dep.Ping(c.Request.Context()); err != nil {
			response.Error(c, appErr.Wrapf(err, appErr.ServiceUnavailable, "%s unavailable", name))
			return
		}
	}
	response.Success(c, gin.H{
		"status":    "ok",
		"languages": h.languages,
	})
}
