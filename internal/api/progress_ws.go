package api

import (
	"idea-research/internal/models"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development - customize for production
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressStreamHandler handles GET /api/research/ws?taskId=&sessionId=
// Streams progress events as JSON text frames. A task subscription first
// receives the task's current snapshot.
func (h *Handlers) ProgressStreamHandler(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "progress streaming is disabled"})
		return
	}

	taskID := c.Query("taskId")
	sessionID := c.Query("sessionId")
	topic := taskID
	if topic == "" {
		topic = sessionID
	}
	if topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "taskId or sessionId is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := h.hub.Subscribe(topic)
	defer unsubscribe()

	logger := h.logger.With("topic", topic, "remote", c.ClientIP())
	logger.Info("progress stream opened")
	defer logger.Info("progress stream closed")

	if taskID != "" {
		if state, ok := h.worker.GetStatus(taskID); ok {
			if err := writeEvent(conn, snapshotEvent(state)); err != nil {
				return
			}
		}
	}

	// Reader: handles pongs and notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("progress stream read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, event models.ProgressEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

func snapshotEvent(state models.TaskState) models.ProgressEvent {
	event := models.ProgressEvent{
		Type:      models.EventTaskProgress,
		TaskID:    state.TaskID,
		SessionID: state.SessionID,
		Status:    string(state.Status),
		Progress:  float64(state.Progress),
		Message:   state.Message,
		Timestamp: time.Now(),
	}
	switch state.Status {
	case models.TaskStatusCompleted:
		event.Type = models.EventTaskCompleted
		event.Result = state.Result
	case models.TaskStatusFailed:
		event.Type = models.EventTaskFailed
		event.Error = state.ErrorMessage
	}
	return event
}
