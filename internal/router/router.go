package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/config"
	"github.com/stemsi/help-queue/internal/handler"
	"github.com/stemsi/help-queue/internal/middleware"
	"github.com/stemsi/help-queue/internal/response"
	"github.com/stemsi/help-queue/internal/service"
	"github.com/stemsi/help-queue/internal/web"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	UI      *handler.UIHandler
	Queue   *handler.QueueHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	sessions *service.SessionService,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the access log and every envelope share it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.AccessLog(log))
	router.Use(middleware.Brotli())

	router.SetHTMLTemplate(web.Templates())

	router.GET("/health", handlers.System.Health)

	// ─── 1. Browser Screens (cookie session + CSRF) ────────────────────
	ui := router.Group("/")
	ui.Use(
		middleware.NoStore(),
		middleware.UISession(sessions, log),
		middleware.CSRF(cfg.CSRFKey, cfg.GinMode == gin.ReleaseMode),
	)
	{
		ui.GET("/", handlers.UI.Index)
		ui.GET("/login", handlers.UI.ShowLogin)
		ui.POST("/login", handlers.UI.Login)
		ui.GET("/level", handlers.UI.ShowLevel)
		ui.POST("/level", handlers.UI.SaveLevel)
		ui.GET("/student", handlers.UI.ShowStudent)
		ui.POST("/student/requests", handlers.UI.SubmitRequest)
		ui.GET("/instructor", handlers.UI.ShowInstructor)
		ui.POST("/instructor/requests/:id/helped", handlers.UI.MarkHelped)
		ui.GET("/instructor/reset", handlers.UI.ConfirmReset)
		ui.POST("/instructor/reset", handlers.UI.Reset)
		ui.POST("/logout", handlers.UI.Logout)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.NoStore())

	// ─── 2. Public API ─────────────────────────────────────────────────
	{
		api.GET("/roster", handlers.Queue.GetRoster)
		api.POST("/session", handlers.Session.Start)
	}

	// ─── 3. Session API (Bearer token) ─────────────────────────────────
	sessionAPI := api.Group("/session")
	sessionAPI.Use(middleware.RequireSession(sessions))
	{
		sessionAPI.GET("/me", handlers.Session.Me)
		sessionAPI.POST("/login", handlers.Session.Login)
		sessionAPI.PUT("/level", handlers.Session.SaveLevel)
		sessionAPI.PUT("/page", handlers.Session.Navigate)
		sessionAPI.DELETE("", handlers.Session.End)
	}

	// ─── 4. Queue API ──────────────────────────────────────────────────
	requests := api.Group("/requests")
	{
		requests.POST("", limiter.Middleware(), middleware.OptionalSession(sessions), handlers.Queue.SubmitRequest)
		requests.GET("/pending", handlers.Queue.ListPending)
		requests.POST("/:id/helped", handlers.Queue.MarkHelped)
		requests.DELETE("", handlers.Queue.Reset)
	}

	// ─── 5. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSession(sessions))
	{
		ws.GET("/instructor/queue", handlers.WS.InstructorQueueStream)
	}

	return router
}
