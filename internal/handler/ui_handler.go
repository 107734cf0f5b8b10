package handler

import (
	"errors"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/middleware"
	"github.com/stemsi/help-queue/internal/model"
	"github.com/stemsi/help-queue/internal/response"
	"github.com/stemsi/help-queue/internal/service"
	"github.com/stemsi/help-queue/internal/validator"
)

// pageData is the view model shared by every screen template.
type pageData struct {
	Title     string
	Session   *model.SessionState
	CSRFField template.HTML

	Error  string
	Notice string
	Info   string

	Roster   []string
	Selected string

	MinRating int
	MaxRating int
	Level     int
	Rating    int

	HasAny   bool
	Requests []model.HelpRequest
}

// UIHandler serves the login, level, student and instructor screens.
type UIHandler struct {
	queue    *service.QueueService
	sessions *service.SessionService
	limiter  *middleware.RateLimiter
	log      zerolog.Logger
}

// NewUIHandler creates a new UIHandler.
func NewUIHandler(
	queue *service.QueueService,
	sessions *service.SessionService,
	limiter *middleware.RateLimiter,
	log zerolog.Logger,
) *UIHandler {
	return &UIHandler{
		queue:    queue,
		sessions: sessions,
		limiter:  limiter,
		log:      log.With().Str("component", "ui_handler").Logger(),
	}
}

// pagePath maps a session page to its URL.
func pagePath(p model.Page) string {
	switch p {
	case model.PageLevel:
		return "/level"
	case model.PageStudent:
		return "/student"
	case model.PageInstructor:
		return "/instructor"
	default:
		return "/login"
	}
}

func (h *UIHandler) page(c *gin.Context, title string) pageData {
	data := pageData{
		Title:     title,
		CSRFField: csrf.TemplateField(c.Request),
		MinRating: model.MinRating,
		MaxRating: model.MaxRating,
	}
	if sess := middleware.GetSession(c); sess != nil {
		data.Session = sess.State
	}
	return data
}

// redirectIfForced sends the browser to the step it has not completed yet.
// It returns true when a redirect was written.
func (h *UIHandler) redirectIfForced(c *gin.Context, sess *service.Session) bool {
	if forced, ok := service.ForcedPage(sess.State); ok {
		c.Redirect(http.StatusSeeOther, pagePath(forced))
		return true
	}
	return false
}

func (h *UIHandler) save(c *gin.Context, sess *service.Session) bool {
	if err := h.sessions.Save(c.Request.Context(), sess); err != nil {
		h.log.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to save session")
		c.AbortWithStatus(http.StatusInternalServerError)
		return false
	}
	return true
}

// errorMessage turns a domain error into the text shown on a screen.
func errorMessage(err error) (int, string) {
	status, code := response.Classify(err)
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve.Fields))
		for _, m := range ve.Fields {
			msgs = append(msgs, m)
		}
		sort.Strings(msgs)
		return status, strings.Join(msgs, " ")
	}
	return status, response.GetMessage(code)
}

// Index godoc
// GET /
func (h *UIHandler) Index(c *gin.Context) {
	sess := middleware.GetSession(c)
	c.Redirect(http.StatusSeeOther, pagePath(sess.State.Page))
}

// ShowLogin godoc
// GET /login
func (h *UIHandler) ShowLogin(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess.State.LoggedIn() {
		c.Redirect(http.StatusSeeOther, pagePath(sess.State.Page))
		return
	}
	data := h.page(c, "Login")
	data.Roster = h.sessions.Roster()
	c.HTML(http.StatusOK, "login.tmpl", data)
}

// Login godoc
// POST /login
func (h *UIHandler) Login(c *gin.Context) {
	sess := middleware.GetSession(c)

	var req model.LoginRequest
	err := error(model.NewValidationError("name", "Please select your name."))
	if fields := validator.BindForm(c, &req); fields == nil {
		err = h.sessions.Login(sess.State, req.Name)
	}
	if err != nil {
		data := h.page(c, "Login")
		data.Roster = h.sessions.Roster()
		data.Selected = req.Name
		status, msg := errorMessage(err)
		data.Error = msg
		c.HTML(status, "login.tmpl", data)
		return
	}

	if !h.save(c, sess) {
		return
	}
	h.log.Info().Str("session_id", sess.ID).Str("user", sess.State.User).Msg("User logged in")
	c.Redirect(http.StatusSeeOther, pagePath(sess.State.Page))
}

// ShowLevel godoc
// GET /level
func (h *UIHandler) ShowLevel(c *gin.Context) {
	sess := middleware.GetSession(c)
	if !sess.State.LoggedIn() {
		c.Redirect(http.StatusSeeOther, pagePath(model.PageLogin))
		return
	}
	data := h.page(c, "Your Level")
	data.Level = sess.State.LevelOr(model.DefaultRating)
	c.HTML(http.StatusOK, "level.tmpl", data)
}

// SaveLevel godoc
// POST /level
func (h *UIHandler) SaveLevel(c *gin.Context) {
	sess := middleware.GetSession(c)
	if !sess.State.LoggedIn() {
		c.Redirect(http.StatusSeeOther, pagePath(model.PageLogin))
		return
	}

	var req model.LevelRequest
	var err error
	if fields := validator.BindForm(c, &req); fields != nil {
		err = &model.ValidationError{Fields: fields}
	} else {
		err = h.sessions.SaveLevel(sess.State, req.Level)
	}
	if err != nil {
		data := h.page(c, "Your Level")
		data.Level = sess.State.LevelOr(model.DefaultRating)
		status, msg := errorMessage(err)
		data.Error = msg
		c.HTML(status, "level.tmpl", data)
		return
	}

	if !h.save(c, sess) {
		return
	}
	c.Redirect(http.StatusSeeOther, pagePath(sess.State.Page))
}

// ShowStudent godoc
// GET /student
func (h *UIHandler) ShowStudent(c *gin.Context) {
	sess := middleware.GetSession(c)
	if h.redirectIfForced(c, sess) {
		return
	}
	if sess.State.Page != model.PageStudent {
		_ = h.sessions.Navigate(sess.State, model.PageStudent)
		if !h.save(c, sess) {
			return
		}
	}

	data := h.page(c, "Request Help")
	data.Rating = sess.State.LevelOr(model.DefaultRating)
	if c.Query("submitted") != "" {
		data.Notice = "Your help request has been submitted."
	}
	c.HTML(http.StatusOK, "student.tmpl", data)
}

// SubmitRequest godoc
// POST /student/requests
// Submits a help request for the logged-in student with the rating chosen on the form.
func (h *UIHandler) SubmitRequest(c *gin.Context) {
	sess := middleware.GetSession(c)
	if h.redirectIfForced(c, sess) {
		return
	}

	data := h.page(c, "Request Help")
	data.Rating = sess.State.LevelOr(model.DefaultRating)

	if h.limiter != nil && !h.limiter.Allow(sess.ID) {
		data.Error = response.GetMessage(response.ErrRateLimitExceeded)
		c.HTML(http.StatusTooManyRequests, "student.tmpl", data)
		return
	}

	var form model.RatingForm
	if fields := validator.BindForm(c, &form); fields != nil {
		status, msg := errorMessage(&model.ValidationError{Fields: fields})
		data.Error = msg
		c.HTML(status, "student.tmpl", data)
		return
	}
	data.Rating = form.Rating

	if _, err := h.queue.SubmitRequest(c.Request.Context(), sess.State.User, form.Rating); err != nil {
		status, msg := errorMessage(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("user", sess.State.User).Msg("Failed to submit help request")
		}
		data.Error = msg
		c.HTML(status, "student.tmpl", data)
		return
	}
	c.Redirect(http.StatusSeeOther, "/student?submitted=1")
}

// ShowInstructor godoc
// GET /instructor
// Lists pending requests sorted by rating, then age.
func (h *UIHandler) ShowInstructor(c *gin.Context) {
	sess := middleware.GetSession(c)
	if h.redirectIfForced(c, sess) {
		return
	}
	if sess.State.Page != model.PageInstructor {
		_ = h.sessions.Navigate(sess.State, model.PageInstructor)
		if !h.save(c, sess) {
			return
		}
	}

	data := h.page(c, "Dashboard")
	switch {
	case c.Query("helped") != "":
		data.Notice = "Marked as helped."
	case c.Query("reset") != "":
		data.Notice = "All requests cleared."
	case c.Query("gone") != "":
		data.Info = "That request no longer exists."
	case c.Query("changed") != "":
		data.Info = response.GetMessage(response.ErrConflict)
	}

	all, err := h.queue.ListAll(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load help requests")
		status, msg := errorMessage(err)
		data.Error = msg
		data.HasAny = true
		c.HTML(status, "instructor.tmpl", data)
		return
	}
	data.HasAny = len(all) > 0
	data.Requests = service.SortPending(all)
	c.HTML(http.StatusOK, "instructor.tmpl", data)
}

// MarkHelped godoc
// POST /instructor/requests/:id/helped
func (h *UIHandler) MarkHelped(c *gin.Context) {
	sess := middleware.GetSession(c)
	if h.redirectIfForced(c, sess) {
		return
	}

	err := h.queue.MarkHelped(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/instructor?helped=1")
	case errors.Is(err, model.ErrNotFound):
		c.Redirect(http.StatusSeeOther, "/instructor?gone=1")
	case errors.Is(err, model.ErrRowChanged):
		c.Redirect(http.StatusSeeOther, "/instructor?changed=1")
	default:
		h.log.Error().Err(err).Str("request_id", c.Param("id")).Msg("Failed to mark request helped")
		data := h.page(c, "Dashboard")
		status, msg := errorMessage(err)
		data.Error = msg
		data.HasAny = true
		c.HTML(status, "instructor.tmpl", data)
	}
}

// ConfirmReset godoc
// GET /instructor/reset
// First step of the two-step reset.
func (h *UIHandler) ConfirmReset(c *gin.Context) {
	sess := middleware.GetSession(c)
	if h.redirectIfForced(c, sess) {
		return
	}
	c.HTML(http.StatusOK, "confirm_reset.tmpl", h.page(c, "Clear all requests"))
}

// Reset godoc
// POST /instructor/reset
func (h *UIHandler) Reset(c *gin.Context) {
	sess := middleware.GetSession(c)
	if h.redirectIfForced(c, sess) {
		return
	}

	var req model.ResetQueueRequest
	if fields := validator.BindForm(c, &req); fields != nil {
		data := h.page(c, "Clear all requests")
		data.Error = "Confirm the reset to continue."
		c.HTML(http.StatusBadRequest, "confirm_reset.tmpl", data)
		return
	}

	if err := h.queue.ResetAll(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to reset queue")
		data := h.page(c, "Clear all requests")
		status, msg := errorMessage(err)
		data.Error = msg
		c.HTML(status, "confirm_reset.tmpl", data)
		return
	}
	h.log.Warn().Str("session_id", sess.ID).Str("user", sess.State.User).Msg("Queue reset from dashboard")
	c.Redirect(http.StatusSeeOther, "/instructor?reset=1")
}

// Logout godoc
// POST /logout
func (h *UIHandler) Logout(c *gin.Context) {
	sess := middleware.GetSession(c)
	if err := h.sessions.End(c.Request.Context(), sess); err != nil {
		h.log.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to end session")
	}
	middleware.ClearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/login")
}
