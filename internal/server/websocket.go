package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	appErr "coderun/pkg/errors"
	"coderun/pkg/utils/logger"
)

const (
	defaultWriteTimeout = 10 * time.Second
	maxFrameBytes       = 64 * 1024
)

// SocketConfig holds websocket settings.
type SocketConfig struct {
	WriteTimeout time.Duration
	// AllowedOrigins lists accepted Origin headers; empty accepts any origin.
	AllowedOrigins []string
}

// SocketHandler upgrades HTTP requests and serves run events on the socket.
type SocketHandler struct {
	runs         *RunService
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	inflight     sync.WaitGroup
}

// NewSocketHandler creates a websocket handler backed by runs.
func NewSocketHandler(runs *RunService, cfg SocketConfig) *SocketHandler {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	h := &SocketHandler{runs: runs, writeTimeout: writeTimeout}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// Serve handles one websocket connection until the peer goes away.
// Every run request is executed on its own goroutine; results go back only
// to this connection.
func (h *SocketHandler) Serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(maxFrameBytes)
	out := newConn(ws, h.writeTimeout)
	defer func() { _ = out.close() }()

	// The request context ends on disconnect or server shutdown. Closing the
	// socket then unblocks the read loop, and in-flight children are killed.
	ctx := c.Request.Context()
	stop := context.AfterFunc(ctx, func() { _ = out.close() })
	defer stop()
	logger.Info(ctx, "websocket connected", zap.String("remote", c.ClientIP()))
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn(ctx, "websocket read failed", zap.Error(err))
			}
			logger.Info(ctx, "websocket disconnected")
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			h.reject(ctx, out, appErr.Wrapf(err, appErr.MalformedFrame, "malformed frame"))
			continue
		}
		switch env.Event {
		case EventRun:
			var payload RunPayload
			if len(env.Data) > 0 {
				if err := json.Unmarshal(env.Data, &payload); err != nil {
					h.reject(ctx, out, appErr.Wrapf(err, appErr.MalformedFrame, "malformed run payload"))
					continue
				}
			}
			runID := uuid.NewString()
			logger.Info(ctx, "run requested", zap.String("run_id", runID), zap.String("language", payload.Language))
			h.inflight.Add(1)
			go func() {
				defer h.inflight.Done()
				h.runs.Run(ctx, runID, payload.Language, &runSink{conn: out, runID: runID})
			}()
		default:
			h.reject(ctx, out, appErr.Newf(appErr.UnknownEvent, "unknown event %q", env.Event))
		}
	}
}

// Wait blocks until all runs started by this handler have delivered.
func (h *SocketHandler) Wait() {
	h.inflight.Wait()
}

func (h *SocketHandler) reject(ctx context.Context, out *conn, err error) {
	logger.Debug(ctx, "frame rejected", zap.Error(err))
	if sendErr := out.send(EventError, ErrorPayload{Message: err.Error()}); sendErr != nil {
		logger.Debug(ctx, "send error frame failed", zap.Error(sendErr))
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.ToLower(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}
