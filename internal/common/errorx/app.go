package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Application call failure codes
const (
	CodeAppNoListener   = "ERR_APP_NO_LISTENER"
	CodeAppUnsuccessful = "ERR_APP_UNSUCCESSFUL"
	CodeAppConnRefused  = "ERR_APP_CONN_REFUSED"
	CodeAppUnknown      = "ERR_APP_UNKNOWN"
)

// AppError is returned when the application answered with a non-2xx status
type AppError struct {
	Method     string
	URL        string
	StatusCode int
	Body       any
}

func (e *AppError) Error() string {
	return fmt.Sprintf("app responded %d to %s %s", e.StatusCode, e.Method, e.URL)
}

// ErrorPacket is the normalized form of a failed application call
type ErrorPacket struct {
	Message  string          `json:"message"`
	Event    string          `json:"event"`
	Response *ResponseDetail `json:"response,omitempty"`
}

type ResponseDetail struct {
	Status int `json:"status"`
	Data   any `json:"data"`
}

// Classifier maps application call failures onto the ERR_APP_* taxonomy.
// It remembers every route that answered 404 so the missing listener is
// reported once per route for the lifetime of the process.
type Classifier struct {
	logger  *zap.Logger
	devMode bool

	mu              sync.Mutex
	undefinedRoutes map[string]struct{}
}

// NewClassifier creates a classifier with an empty route history
func NewClassifier(logger *zap.Logger, devMode bool) *Classifier {
	return &Classifier{
		logger:          logger.Named("app"),
		devMode:         devMode,
		undefinedRoutes: make(map[string]struct{}),
	}
}

// Classify logs err and returns its packet. A nil error yields nil.
func (c *Classifier) Classify(sid, event string, err error) *ErrorPacket {
	if err == nil {
		return nil
	}

	var appErr *AppError
	switch {
	case errors.As(err, &appErr) && appErr.StatusCode == http.StatusNotFound:
		c.logger.Debug("app error",
			zap.Int("status", appErr.StatusCode),
			zap.String("sid", sid),
			zap.String("url", appErr.URL))
		if c.rememberRoute(appErr.URL) {
			c.logger.Warn("event listener route is not defined on your web app", zap.String("url", appErr.URL))
		}
		return &ErrorPacket{Message: CodeAppNoListener, Event: event}

	case appErr != nil:
		c.logger.Warn("app error",
			zap.String("sid", sid),
			zap.String("url", appErr.URL),
			zap.Int("status", appErr.StatusCode),
			zap.Any("body", appErr.Body))
		return &ErrorPacket{
			Message:  CodeAppUnsuccessful,
			Event:    event,
			Response: &ResponseDetail{Status: appErr.StatusCode, Data: appErr.Body},
		}

	case errors.Is(err, syscall.ECONNREFUSED):
		c.logger.Error("app connection refused", zap.String("sid", sid), zap.String("event", event))
		return &ErrorPacket{Message: CodeAppConnRefused, Event: event}

	default:
		fields := []zap.Field{zap.String("sid", sid), zap.String("event", event)}
		if c.devMode {
			fields = append(fields, zap.Error(err))
		}
		c.logger.Error("unrecognized app exception", fields...)
		return &ErrorPacket{Message: CodeAppUnknown, Event: event}
	}
}

// rememberRoute reports whether url was seen for the first time
func (c *Classifier) rememberRoute(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.undefinedRoutes[url]; ok {
		return false
	}
	c.undefinedRoutes[url] = struct{}{}
	return true
}

// UndefinedRoutes returns the routes that answered 404 so far, sorted
func (c *Classifier) UndefinedRoutes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	routes := make([]string, 0, len(c.undefinedRoutes))
	for r := range c.undefinedRoutes {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes
}
