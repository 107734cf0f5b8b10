package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/help-queue/internal/response"
	"github.com/stemsi/help-queue/internal/service"
)

const (
	// ContextKeySession is the Gin context key for the resolved *service.Session.
	ContextKeySession = "session"
)

// RequireSession resolves the session token sent by API and WebSocket clients.
// The token is read from "Authorization: Bearer ..." or, for WebSocket
// upgrades that cannot set headers, from the ?token= query parameter.
func RequireSession(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionRequired)
			return
		}

		sess, err := sessions.Resolve(c.Request.Context(), tokenStr)
		if err != nil {
			if service.IsSessionError(err) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalid)
				return
			}
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeySession, sess)
		c.Next()
	}
}

// OptionalSession attaches the session when a token is sent and lets
// anonymous requests through. A token that does not resolve is rejected.
func OptionalSession(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if extractToken(c) == "" {
			c.Next()
			return
		}
		RequireSession(sessions)(c)
	}
}

// GetSession retrieves the session attached by RequireSession or UISession.
func GetSession(c *gin.Context) *service.Session {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	sess, ok := val.(*service.Session)
	if !ok {
		return nil
	}
	return sess
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}
