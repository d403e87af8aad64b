package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/bridge"
	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/pkg/metrics"
	"github.com/amoylab/oscbridge/pkg/version"
)

// StatusProvider reports the bridge state
type StatusProvider interface {
	Status() bridge.Status
}

// Server is the local admin HTTP server
type Server struct {
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	listener net.Listener
	status   StatusProvider
	metrics  *metrics.Metrics
}

// NewServer creates the admin server and registers its routes
func NewServer(logger *zap.Logger, status StatusProvider, m *metrics.Metrics) *Server {
	s := &Server{
		logger:  logger.Named("admin"),
		router:  gin.New(),
		status:  status,
		metrics: m,
	}
	s.router.Use(s.loggerMiddleware())
	s.router.Use(s.recoveryMiddleware())
	s.router.Use(m.Middleware())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health_check", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Health check passed.",
		})
	})
	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version": version.Get(),
			"bridge":  s.status.Status(),
		})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// Handler exposes the routes for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background
func (s *Server) Start(cfg config.AdminConfig) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.router}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("admin server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down admin server")
	return s.server.Shutdown(ctx)
}

// loggerMiddleware logs incoming requests and outgoing responses
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		s.logger.Debug("request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("remote_addr", c.Request.RemoteAddr),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

// recoveryMiddleware recovers from panics and returns 500 error
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				traceID := uuid.New().String()
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("trace_id", traceID),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":    "internal server error",
					"trace_id": traceID,
				})
			}
		}()
		c.Next()
	}
}
