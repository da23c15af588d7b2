package errorx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RawBodyKey is the gin context key under which handlers stash the request body
const RawBodyKey = "boom.raw_body"

// ErrorHandler turns handler failures and panics into JSON responses
type ErrorHandler struct {
	logger  *zap.Logger
	devMode bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, devMode bool) *ErrorHandler {
	return &ErrorHandler{
		logger:  logger.Named("api.error"),
		devMode: devMode,
	}
}

// HandleError writes the response for err. Known API errors keep their status,
// anything else becomes a generic 500 that never leaks the raw error.
func (h *ErrorHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := h.ConvertToAPIError(c, err)
	h.logError(c, apiErr, err)

	if c.Writer.Written() {
		return
	}
	c.AbortWithStatusJSON(apiErr.HTTPStatus, gin.H{"message": apiErr.Message})
}

// ConvertToAPIError converts any error to APIError
func (h *ErrorHandler) ConvertToAPIError(c *gin.Context, err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return InternalError(c.Request.Method, c.Request.URL.String())
}

func (h *ErrorHandler) logError(c *gin.Context, apiErr *APIError, originalErr error) {
	fields := []zap.Field{
		zap.String("error_code", apiErr.Code),
		zap.String("category", string(apiErr.Category)),
		zap.Int("http_status", apiErr.HTTPStatus),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("client_ip", c.ClientIP()),
	}
	for k, v := range apiErr.Details {
		fields = append(fields, zap.Any(k, v))
	}

	if apiErr.HTTPStatus < http.StatusInternalServerError {
		h.logger.Info(apiErr.Message, fields...)
		return
	}

	if h.devMode {
		fields = append(fields, zap.NamedError("raw_error", originalErr))
		if body, ok := c.Get(RawBodyKey); ok {
			fields = append(fields, zap.ByteString("body", body.([]byte)))
		}
	}
	h.logger.Error(apiErr.Message, fields...)
}

// ErrorMiddleware returns a gin middleware for error handling
func (h *ErrorHandler) ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			h.HandleError(c, c.Errors.Last().Err)
		}
	}
}

// RecoveryMiddleware returns a gin middleware for panic recovery
func (h *ErrorHandler) RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		h.HandleError(c, fmt.Errorf("panic: %v", recovered))
	})
}
