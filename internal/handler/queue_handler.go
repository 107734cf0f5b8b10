package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/middleware"
	"github.com/stemsi/help-queue/internal/model"
	"github.com/stemsi/help-queue/internal/response"
	"github.com/stemsi/help-queue/internal/service"
	"github.com/stemsi/help-queue/internal/validator"
)

// QueueHandler exposes the help-request queue as a JSON API.
type QueueHandler struct {
	queue *service.QueueService
	log   zerolog.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queue *service.QueueService, log zerolog.Logger) *QueueHandler {
	return &QueueHandler{
		queue: queue,
		log:   log.With().Str("component", "queue_handler").Logger(),
	}
}

func (h *QueueHandler) fail(c *gin.Context, err error, msg string) {
	status, _ := response.Classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	}
	response.FailErr(c, err)
}

// GetRoster godoc
// GET /api/v1/roster
func (h *QueueHandler) GetRoster(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"students": h.queue.Roster(),
	})
}

// SubmitRequest godoc
// POST /api/v1/requests
// Appends a pending help request for a roster student. When the body omits
// the name, the user logged into the Bearer session is used.
func (h *QueueHandler) SubmitRequest(c *gin.Context) {
	var req model.SubmitHelpRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		if sess := middleware.GetSession(c); sess != nil && sess.State != nil {
			req.Name = sess.State.User
		}
	}

	created, err := h.queue.SubmitRequest(c.Request.Context(), req.Name, req.Rating)
	if err != nil {
		h.fail(c, err, "Failed to submit help request")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"request": created})
}

// ListPending godoc
// GET /api/v1/requests/pending
// Returns pending requests ordered by rating, then submission time.
func (h *QueueHandler) ListPending(c *gin.Context) {
	pending, err := h.queue.ListPending(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list pending requests")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"requests": pending,
		"count":    len(pending),
	})
}

// MarkHelped godoc
// POST /api/v1/requests/:id/helped
func (h *QueueHandler) MarkHelped(c *gin.Context) {
	id := c.Param("id")
	if err := h.queue.MarkHelped(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to mark request helped")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":     id,
		"status": model.StatusHelped,
	})
}

// Reset godoc
// DELETE /api/v1/requests
// Clears every request. The body must carry {"confirm":"RESET"}.
func (h *QueueHandler) Reset(c *gin.Context) {
	var req model.ResetQueueRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.queue.ResetAll(c.Request.Context()); err != nil {
		h.fail(c, err, "Failed to reset queue")
		return
	}

	h.log.Warn().Str("client_ip", c.ClientIP()).Msg("Queue reset via API")
	response.Success(c, http.StatusOK, gin.H{})
}
