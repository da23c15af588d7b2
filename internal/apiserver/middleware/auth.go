package middleware

import (
	"github.com/amoylab/boom/internal/common/errorx"
	"github.com/gin-gonic/gin"
)

// BearerAuth rejects requests whose Authorization header is not exactly
// "Bearer <token>". An empty token disables the check.
func BearerAuth(token string) gin.HandlerFunc {
	expected := "Bearer " + token
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != expected {
			c.AbortWithStatusJSON(errorx.ErrUnauthorized.HTTPStatus, gin.H{"message": errorx.ErrUnauthorized.Message})
			return
		}
		c.Next()
	}
}
