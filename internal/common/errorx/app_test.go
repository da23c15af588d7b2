package errorx

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedClassifier() (*Classifier, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewClassifier(zap.New(core), false), logs
}

func TestClassify_NoListenerLoggedOncePerRoute(t *testing.T) {
	c, logs := newObservedClassifier()
	notFound := &AppError{Method: "POST", URL: "http://app/boom/chat/typing", StatusCode: 404}

	p := c.Classify("sid1", "typing", notFound)
	require.NotNil(t, p)
	assert.Equal(t, CodeAppNoListener, p.Message)
	assert.Equal(t, "typing", p.Event)
	assert.Nil(t, p.Response)

	routeLog := "event listener route is not defined on your web app"
	assert.Equal(t, 1, logs.FilterMessage(routeLog).Len())

	p = c.Classify("sid2", "typing", fmt.Errorf("wrapped: %w", notFound))
	assert.Equal(t, CodeAppNoListener, p.Message)
	assert.Equal(t, 1, logs.FilterMessage(routeLog).Len())

	c.Classify("sid1", "leave", &AppError{URL: "http://app/boom/chat/leave", StatusCode: 404})
	assert.Equal(t, 2, logs.FilterMessage(routeLog).Len())
	assert.Equal(t, []string{"http://app/boom/chat/leave", "http://app/boom/chat/typing"}, c.UndefinedRoutes())
}

func TestClassify_Unsuccessful(t *testing.T) {
	c, logs := newObservedClassifier()
	body := map[string]any{"error": "nope"}

	p := c.Classify("sid", "message", &AppError{URL: "http://app/boom/message", StatusCode: 500, Body: body})
	require.NotNil(t, p)
	assert.Equal(t, CodeAppUnsuccessful, p.Message)
	require.NotNil(t, p.Response)
	assert.Equal(t, 500, p.Response.Status)
	assert.Equal(t, body, p.Response.Data)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Empty(t, c.UndefinedRoutes())
}

func TestClassify_ConnRefused(t *testing.T) {
	c, _ := newObservedClassifier()
	err := &url.Error{
		Op:  "Post",
		URL: "http://127.0.0.1:1/connect",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
	}
	p := c.Classify("sid", "connect", err)
	assert.Equal(t, CodeAppConnRefused, p.Message)
	assert.Equal(t, "connect", p.Event)
}

func TestClassify_Unknown(t *testing.T) {
	c, logs := newObservedClassifier()
	p := c.Classify("sid", "connect", errors.New("weird"))
	assert.Equal(t, CodeAppUnknown, p.Message)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestClassify_Nil(t *testing.T) {
	c, logs := newObservedClassifier()
	assert.Nil(t, c.Classify("sid", "connect", nil))
	assert.Zero(t, logs.Len())
}
