package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore stops browsers and proxies from caching queue pages, which change on every action.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
