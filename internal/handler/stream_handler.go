package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/infrastructure"
	"github.com/contest-maker-150/assessment/internal/middleware"
	"github.com/contest-maker-150/assessment/internal/window"
)

const streamWriteWait = 10 * time.Second

type streamMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// StreamHandler pushes session snapshots over a websocket on every tick of
// the window clock
type StreamHandler struct {
	sessions SessionManager
	clock    window.Clock
	interval time.Duration
	metrics  *infrastructure.TelemetryMetrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new stream handler. Origins are checked by the
// CORS allow list; an empty list accepts any origin.
func NewStreamHandler(sessions SessionManager, clock window.Clock, interval time.Duration, allowedOrigins []string, metrics *infrastructure.TelemetryMetrics, logger *zap.Logger) *StreamHandler {
	if clock == nil {
		clock = window.SystemClock{}
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &StreamHandler{
		sessions: sessions,
		clock:    clock,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Stream upgrades to a websocket and sends a snapshot immediately and then
// every interval until the session closes or the client goes away
// GET /api/sessions/:activityId/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}
	activityID := c.Param("activityId")

	w, err := h.sessions.Window(c.Request.Context(), participantID, activityID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.String("activity_id", activityID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if m := h.metrics; m != nil {
		m.StreamConnections.Add(ctx, 1, metric.WithAttributes(attribute.String("activity.id", activityID)))
		defer m.StreamConnections.Add(context.Background(), -1, metric.WithAttributes(attribute.String("activity.id", activityID)))
	}

	// The client never sends data; reading detects when it goes away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg streamMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("Websocket write failed", zap.String("activity_id", activityID), zap.Error(err))
			cancel()
			return false
		}
		return true
	}

	window.Watch(ctx, h.clock, w, h.interval, func(status domain.WindowStatus) {
		if ctx.Err() != nil {
			return
		}
		snap, err := h.sessions.Snapshot(ctx, participantID, activityID)
		if err != nil {
			_, message := statusOf(err)
			send(streamMessage{Type: "error", Payload: errorPayload{Message: message}})
			return
		}
		if !send(streamMessage{Type: "snapshot", Payload: snap}) {
			return
		}
		if status.HasEnded || snap.State.Closed() {
			cancel()
		}
	})

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
}

// Register mounts the stream route on an authenticated group
func (h *StreamHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/sessions/:activityId/stream", h.Stream)
}
