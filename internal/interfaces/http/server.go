// Package http provides the HTTP adapter for the application layer.
// Handlers translate requests into application service calls and nothing more.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/tutoring-backoffice/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		Mode:         gin.ReleaseMode,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Services are the application services exposed over HTTP
type Services struct {
	Payroll       service.PayrollService
	Enrollment    service.EnrollmentService
	Sms           service.SmsService
	Notifications service.PaymentNotificationService
	// Ready reports whether the process finished starting; nil means always ready
	Ready func() bool
}

// Server is the HTTP server adapter
type Server struct {
	config   ServerConfig
	router   *gin.Engine
	services Services
	logger   Logger

	mu         sync.Mutex
	httpServer *http.Server
	stopped    bool
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	gin.SetMode(config.Mode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
}

// corsMiddleware lets the back-office web client call the API from another origin
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		runs := api.Group("/payroll/runs")
		runs.POST("", h.GenerateRun)
		runs.GET("", h.ListRuns)
		runs.GET("/:id", h.GetRun)
		runs.POST("/:id/transition", h.TransitionRun)
		runs.POST("/:id/line-items", h.AddManualLineItem)
		runs.POST("/:id/bulk-hours", h.BulkAdjustHours)
		runs.GET("/:id/export", h.ExportRun)
		runs.GET("/:id/notifications", h.ListNotifications)
		runs.POST("/:id/notifications", h.ResendNotifications)

		items := api.Group("/payroll/line-items")
		items.PATCH("/:id", h.UpdateLineItemHours)
		items.POST("/:id/adjust", h.AdjustLineItem)
		items.DELETE("/:id", h.DeleteLineItem)

		api.POST("/enrollments/:id/end", h.EndEnrollment)

		sms := api.Group("/sms")
		sms.POST("/generate", h.GenerateMessage)
		sms.POST("/preview", h.PreviewMessage)
		sms.GET("/estimate", h.EstimateCost)
		sms.POST("/bulk", h.SendBulk)
		sms.POST("/status", h.DeliveryStatus)
		sms.GET("/batches/:id", h.GetBatch)
	}
}

// Start serves HTTP until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("http server already stopped")
	}
	if s.httpServer != nil {
		s.mu.Unlock()
		return fmt.Errorf("http server already started")
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server. Calling it more than once is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	httpServer := s.httpServer
	already := s.stopped
	s.stopped = true
	s.mu.Unlock()

	if httpServer == nil || already {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
