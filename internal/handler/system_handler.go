package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/response"
)

const pingTimeout = 2 * time.Second

// SystemHandler reports process liveness and the session backend's health.
type SystemHandler struct {
	rdb         *redis.Client
	storeDriver string
	startTime   time.Time
	log         zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. rdb may be nil when
// sessions are kept in memory.
func NewSystemHandler(rdb *redis.Client, storeDriver string, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:         rdb,
		storeDriver: storeDriver,
		startTime:   time.Now(),
		log:         log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// The spreadsheet is not contacted; a slow store must not fail liveness.
func (h *SystemHandler) Health(c *gin.Context) {
	sessionStore := "memory"
	if h.rdb != nil {
		sessionStore = "redis"
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			h.log.Warn().Err(err).Msg("Redis ping failed")
			response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        formatDuration(time.Since(h.startTime)),
		"store_driver":  h.storeDriver,
		"session_store": sessionStore,
		"go_version":    runtime.Version(),
		"goroutines":    runtime.NumGoroutine(),
	})
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
