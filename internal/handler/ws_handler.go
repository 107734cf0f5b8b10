package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/model"
	"github.com/stemsi/help-queue/internal/response"
	"github.com/stemsi/help-queue/internal/service"
	ws "github.com/stemsi/help-queue/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the instructor dashboard over a WebSocket.
// Every action is answered with exactly one event.
type WSHandler struct {
	queue    *service.QueueService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(queue *service.QueueService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		queue:    queue,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// InstructorQueueStream godoc
// WS /ws/v1/instructor/queue
func (h *WSHandler) InstructorQueueStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("remote", c.ClientIP()).Logger()
	wsLog.Info().Msg("Instructor connected")

	ctx := c.Request.Context()
	for {
		action, raw, err := ws.ReadMessage(conn)
		if err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				ws.WriteError(conn, "invalid message")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch action {
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionRefresh:
			h.sendQueue(ctx, conn, wsLog)
		case ws.ActionHelped:
			h.handleHelped(ctx, conn, wsLog, raw)
		case ws.ActionReset:
			h.handleReset(ctx, conn, wsLog, raw)
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(action))
		}
	}
}

// sendQueue answers with the current pending requests.
func (h *WSHandler) sendQueue(ctx context.Context, conn *websocket.Conn, log zerolog.Logger) {
	pending, err := h.queue.ListPending(ctx)
	if err != nil {
		h.writeErr(conn, log, err, "Failed to list pending requests")
		return
	}
	if pending == nil {
		pending = []model.HelpRequest{}
	}
	ws.WriteTyped(conn, ws.QueueResponse{Event: ws.EventQueue, Requests: pending})
}

func (h *WSHandler) handleHelped(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, raw json.RawMessage) {
	var msg ws.HelpedRequest
	if err := json.Unmarshal(raw, &msg); err != nil || strings.TrimSpace(msg.ID) == "" {
		ws.WriteError(conn, "id is required")
		return
	}
	if err := h.queue.MarkHelped(ctx, msg.ID); err != nil {
		h.writeErr(conn, log, err, "Failed to mark request helped")
		return
	}
	h.sendQueue(ctx, conn, log)
}

func (h *WSHandler) handleReset(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, raw json.RawMessage) {
	var msg ws.ResetRequest
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Confirm != model.ResetConfirmWord {
		ws.WriteError(conn, `confirm must be "`+model.ResetConfirmWord+`"`)
		return
	}
	if err := h.queue.ResetAll(ctx); err != nil {
		h.writeErr(conn, log, err, "Failed to reset queue")
		return
	}
	log.Warn().Msg("Queue reset via WebSocket")
	h.sendQueue(ctx, conn, log)
}

func (h *WSHandler) writeErr(conn *websocket.Conn, log zerolog.Logger, err error, msg string) {
	status, code := response.Classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	}
	ws.WriteError(conn, response.GetMessage(code))
}
