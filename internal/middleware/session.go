package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/help-queue/internal/service"
)

// SessionCookie holds the signed session token of browser sessions.
const SessionCookie = "helpq_session"

// UISession attaches the browser's session, starting a new one when the
// cookie is missing, expired or unknown. A browser never shares state with
// another session; losing the cookie means logging in again.
func UISession(sessions *service.SessionService, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "ui_session").Logger()

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
			sess, err := sessions.Resolve(ctx, token)
			if err == nil {
				c.Set(ContextKeySession, sess)
				c.Next()
				return
			}
			if !service.IsSessionError(err) {
				log.Error().Err(err).Msg("Failed to load session")
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
		}

		sess, err := sessions.Start(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to start session")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, sess.Token, int(sessions.TTL().Seconds()), "/", "", c.Request.TLS != nil, true)
		c.Set(ContextKeySession, sess)
		c.Next()
	}
}

// ClearSessionCookie expires the browser's session cookie.
func ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
}
