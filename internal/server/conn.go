package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coderun/internal/execution/pipeline"
	"coderun/internal/execution/result"
	appErr "coderun/pkg/errors"
)

// conn serializes writes to one websocket. gorilla allows a single concurrent
// writer, and every run on the connection reports through it.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *conn {
	return &conn{ws: ws, writeTimeout: writeTimeout}
}

func (c *conn) send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode %s payload failed", event)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode %s frame failed", event)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *conn) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

// runSink delivers one run's outcome to the connection that requested it.
type runSink struct {
	conn  *conn
	runID string
}

func (s *runSink) Deliver(ctx context.Context, res result.ExecutionResult) error {
	return s.conn.send(EventResult, NewResultPayload(res))
}

func (s *runSink) DeliverError(ctx context.Context, err error) error {
	return s.conn.send(EventError, ErrorPayload{RunID: s.runID, Message: err.Error()})
}

// ReportStatus forwards pipeline transitions as status events.
func (s *runSink) ReportStatus(ctx context.Context, update pipeline.StatusUpdate) error {
	return s.conn.send(EventStatus, StatusPayload{
		RunID:    update.RunID,
		Language: update.Language,
		State:    update.State,
	})
}
