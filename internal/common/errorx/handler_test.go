package errorx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestEngine(h *ErrorHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(h.RecoveryMiddleware(), h.ErrorMiddleware())
	r.POST("/known", func(c *gin.Context) { _ = c.Error(ErrNonExistingSocket) })
	r.POST("/detail", func(c *gin.Context) { _ = c.Error(ErrValidation.WithDetail("field", "rooms")) })
	r.POST("/boom", func(c *gin.Context) {
		c.Set(RawBodyKey, []byte(`{"a":1}`))
		_ = c.Error(errors.New("join failed"))
	})
	r.POST("/panic", func(c *gin.Context) { panic("kaboom") })
	return r
}

func do(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
	return w
}

func TestErrorMiddleware_KnownError(t *testing.T) {
	r := newTestEngine(NewErrorHandler(zap.NewNop(), false))
	w := do(r, "/known")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"message":"Non-existing socket id."}`, w.Body.String())

	w = do(r, "/detail")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"message":"Validation error"}`, w.Body.String())
	assert.Nil(t, ErrValidation.Details)
}

func TestErrorMiddleware_GenericError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newTestEngine(NewErrorHandler(zap.New(core), true))

	w := do(r, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"API:: Error; url=/boom, method=POST"}`, w.Body.String())

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	assert.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "join failed", ctx["raw_error"])
	assert.Equal(t, `{"a":1}`, ctx["body"])
}

func TestErrorMiddleware_ProductionHidesRawError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newTestEngine(NewErrorHandler(zap.New(core), false))
	do(r, "/boom")
	ctx := logs.All()[0].ContextMap()
	assert.NotContains(t, ctx, "raw_error")
	assert.NotContains(t, ctx, "body")
}

func TestRecoveryMiddleware(t *testing.T) {
	r := newTestEngine(NewErrorHandler(zap.NewNop(), false))
	w := do(r, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"API:: Error; url=/panic, method=POST"}`, w.Body.String())
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "[E2001] authentication: Unauthorized", ErrUnauthorized.Error())
}
