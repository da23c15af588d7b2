package middleware

import (
	"net/http"

	"github.com/amoylab/boom/internal/common/config"
	"github.com/gin-gonic/gin"
)

// CORS sets the configured Access-Control headers on every response and
// answers preflight requests directly
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", cfg.AllowOrigin)
		h.Set("Access-Control-Allow-Methods", cfg.AllowMethods)
		h.Set("Access-Control-Allow-Headers", cfg.AllowHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
