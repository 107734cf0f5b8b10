package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/middleware"
	"github.com/stemsi/help-queue/internal/model"
	"github.com/stemsi/help-queue/internal/response"
	"github.com/stemsi/help-queue/internal/service"
	"github.com/stemsi/help-queue/internal/validator"
)

// SessionHandler drives the login → level → view flow for API clients.
type SessionHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

func stateBody(state *model.SessionState) gin.H {
	return gin.H{"session": state}
}

// persist saves the session and writes its state, or an error response.
func (h *SessionHandler) persist(c *gin.Context, sess *service.Session) {
	if err := h.sessions.Save(c.Request.Context(), sess); err != nil {
		h.log.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to save session")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, stateBody(sess.State))
}

// Start godoc
// POST /api/v1/session
// Creates a session on the login page and returns its token.
func (h *SessionHandler) Start(c *gin.Context) {
	sess, err := h.sessions.Start(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to start session")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"token":      sess.Token,
		"expires_in": int(h.sessions.TTL().Seconds()),
		"session":    sess.State,
	})
}

// Me godoc
// GET /api/v1/session/me
func (h *SessionHandler) Me(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionRequired)
		return
	}
	response.Success(c, http.StatusOK, stateBody(sess.State))
}

// Login godoc
// POST /api/v1/session/login
func (h *SessionHandler) Login(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionRequired)
		return
	}

	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.sessions.Login(sess.State, req.Name); err != nil {
		response.FailErr(c, err)
		return
	}

	h.log.Info().Str("session_id", sess.ID).Str("user", sess.State.User).Msg("User logged in")
	h.persist(c, sess)
}

// SaveLevel godoc
// PUT /api/v1/session/level
func (h *SessionHandler) SaveLevel(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionRequired)
		return
	}

	var req model.LevelRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.sessions.SaveLevel(sess.State, req.Level); err != nil {
		response.FailErr(c, err)
		return
	}

	h.persist(c, sess)
}

// Navigate godoc
// PUT /api/v1/session/page
// Switches between the student and instructor views.
func (h *SessionHandler) Navigate(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionRequired)
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.sessions.Navigate(sess.State, req.Page); err != nil {
		response.FailErr(c, err)
		return
	}

	h.persist(c, sess)
}

// End godoc
// DELETE /api/v1/session
func (h *SessionHandler) End(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionRequired)
		return
	}

	if err := h.sessions.End(c.Request.Context(), sess); err != nil {
		h.log.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to end session")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}
