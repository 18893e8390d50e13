// Package http provides the HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/metrics"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	auth       *Authenticator
	metrics    *metrics.Recorder
	logger     Logger
}

// NewServer creates a new HTTP server with the given services.
// recorder may be nil, in which case /metrics is not mounted.
func NewServer(
	config ServerConfig,
	services Services,
	auth *Authenticator,
	recorder *metrics.Recorder,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(services, logger),
		auth:     auth,
		metrics:  recorder,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(RequestID())
	s.router.Use(CORS(s.config.AllowedOrigins))
	s.router.Use(Metrics(s.metrics))
	s.router.Use(AccessLog(s.logger))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	staff := RequireRoles(entity.RoleMaster, entity.RoleEmployee)
	redeemers := RequireRoles(entity.RolePartner, entity.RoleEmployee, entity.RoleMaster)
	cancellers := RequireRoles(entity.RoleMaster, entity.RolePartner, entity.RoleCustomer)
	operators := RequireRoles(entity.RoleMaster, entity.RoleEmployee, entity.RolePartner)
	authed := RequireAuth()

	api := s.router.Group("/api/v1")
	api.Use(Authenticate(s.auth))
	{
		vouchers := api.Group("/vouchers")
		vouchers.POST("", staff, h.IssueVoucher)
		vouchers.GET("/number/:number", authed, h.GetByNumber)
		vouchers.GET("/confirmation/:code", h.GetByConfirmationCode)
		vouchers.POST("/verify", authed, h.VerifyToken)
		vouchers.POST("/redeem", redeemers, h.RedeemByToken)

		vouchers.GET("/:id", authed, h.GetVoucher)
		vouchers.POST("/:id/redeem", redeemers, h.RedeemByID)
		vouchers.POST("/:id/cancel", cancellers, h.CancelVoucher)
		vouchers.POST("/:id/token", authed, h.IssueToken)
		vouchers.GET("/:id/document", authed, h.GetDocument)
		vouchers.POST("/:id/email", authed, h.SendEmail)
		vouchers.GET("/:id/usage", operators, h.ListUsage)
		vouchers.GET("/:id/usage/export", operators, h.ExportUsage)

		admin := api.Group("/admin", RequireRoles(entity.RoleMaster))
		admin.POST("/sweeps", h.RunSweep)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or serving fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
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
