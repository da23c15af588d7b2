package core

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/amoylab/boom/internal/apiserver/handler"
	"github.com/amoylab/boom/internal/apiserver/middleware"
	"github.com/amoylab/boom/internal/auth/jwt"
	"github.com/amoylab/boom/internal/common/config"
	"github.com/amoylab/boom/internal/common/errorx"
	"github.com/amoylab/boom/internal/realtime"
	"github.com/amoylab/boom/internal/relay"
	"github.com/amoylab/boom/internal/session"
	"github.com/amoylab/boom/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type (
	// Server hosts the realtime endpoint and the control API on one listener
	Server struct {
		logger  *zap.Logger
		cfg     *config.BoomConfig
		router  *gin.Engine
		io      *realtime.Server
		relay   *relay.Relay
		metrics *metrics.Metrics
		http    *http.Server
		// listener is set by Start
		listener net.Listener
	}
)

// NewServer wires the realtime server, the relay and the control API.
// m may be nil when metrics are disabled.
func NewServer(logger *zap.Logger, cfg *config.BoomConfig, store session.Store, m *metrics.Metrics) (*Server, error) {
	opts := realtime.Options{
		PingInterval:   cfg.Socket.PingInterval,
		PongTimeout:    cfg.Socket.PongTimeout,
		WriteTimeout:   cfg.Socket.WriteTimeout,
		MaxMessageSize: cfg.Socket.MaxMessageSize,
		SendBuffer:     cfg.Socket.SendBuffer,
		Compression:    cfg.Socket.Compression,
		AllowOrigins:   cfg.Socket.AllowOrigins,
	}
	if secret := cfg.Socket.Auth.JWTSecret; secret != "" {
		verifier, err := jwt.NewVerifier(secret)
		if err != nil {
			return nil, fmt.Errorf("invalid socket auth: %w", err)
		}
		opts.TokenVerifier = verifier.Verify
	}

	io := realtime.NewServer(logger, opts)
	names := make([]string, 0, len(cfg.Socket.Namespaces))
	for name, nc := range cfg.Socket.Namespaces {
		io.Of(name).SetMaxConnections(nc.MaxConnections)
		names = append(names, name)
	}
	sort.Strings(names)

	rl := relay.New(logger, store, relay.NewClient(&cfg.App), errorx.NewClassifier(logger, cfg.DevMode), m, cfg.DevMode)
	rl.Setup(io, names)

	s := &Server{
		logger:  logger.Named("server"),
		cfg:     cfg,
		router:  gin.New(),
		io:      io,
		relay:   rl,
		metrics: m,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	errHandler := errorx.NewErrorHandler(s.logger, s.cfg.DevMode)

	if s.cfg.Tracing.Enabled {
		s.router.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	}
	s.router.Use(s.loggerMiddleware())
	s.router.Use(errHandler.RecoveryMiddleware())
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
		s.router.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}
	s.router.GET(s.cfg.Socket.Path, gin.WrapH(s.io))

	control := handler.NewControl(s.io, s.logger)
	api := s.router.Group("")
	api.Use(middleware.CORS(s.cfg.API.CORS))
	api.Use(errHandler.ErrorMiddleware())
	api.GET("/", control.HandleIndex)

	protected := api.Group("", middleware.BearerAuth(s.cfg.API.Auth.Token))
	protected.GET("/status", control.HandleStatus)
	protected.POST("/emit", control.HandleEmit)
	protected.POST("/join", control.HandleJoin)
	protected.DELETE("/leave", control.HandleLeave)
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Realtime returns the realtime server
func (s *Server) Realtime() *realtime.Server {
	return s.io
}

// Start binds the listener and serves in the background. TLS material and
// bind errors are returned synchronously.
func (s *Server) Start() error {
	var tlsCfg *tls.Config
	if s.cfg.Secure {
		var err error
		tlsCfg, err = LoadTLSConfig(&s.cfg.SSL)
		if err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("secure", tlsCfg != nil),
		zap.String("socket_path", s.cfg.Socket.Path),
		zap.Strings("namespaces", s.io.Namespaces()))

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped unexpectedly", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, empty before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests, disconnects every socket and waits for
// pending reports to reach the application
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := s.io.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("realtime shutdown: %w", err))
	}
	if err := s.relay.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pending reports: %w", err))
	}
	return errors.Join(errs...)
}
