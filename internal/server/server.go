package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/region23/tablebook/internal/bot"
	botservice "github.com/region23/tablebook/internal/bot/service"
	"github.com/region23/tablebook/internal/config"
	"github.com/region23/tablebook/internal/middleware"
	"github.com/region23/tablebook/internal/reservation"
	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/tables"
	"github.com/region23/tablebook/internal/tokens"
	"github.com/region23/tablebook/internal/validation"
	"github.com/region23/tablebook/pkg/logger"
)

const apiPrefix = "/api/v1"

// Version сервиса для health check
var Version = "dev"

// Deps содержит сервисы, которые обслуживает HTTP слой
type Deps struct {
	Storage      storage.Storage
	Tables       *tables.Engine
	Allocator    *reservation.Allocator
	Reservations *reservation.Service
	Bot          *botservice.Service
	Dispatcher   *bot.Dispatcher
	Tokens       tokens.Store
}

// Server представляет HTTP сервер с middleware
type Server struct {
	httpServer     *http.Server
	engine         *gin.Engine
	config         *config.Config
	deps           Deps
	auth           *Authenticator
	logger         *logger.Logger
	rateLimiter    *middleware.RateLimiter
	securityLogger *SecurityLogger
	healthChecker  *HealthChecker
}

// New создает новый HTTP сервер
func New(cfg *config.Config, deps Deps, log *logger.Logger) (*Server, error) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validation.Register(v); err != nil {
			return nil, fmt.Errorf("failed to register validators: %w", err)
		}
	}

	log = log.Component("http")
	s := &Server{
		config:         cfg,
		deps:           deps,
		auth:           NewAuthenticator(cfg.Auth.JWTSecret),
		logger:         log,
		rateLimiter:    middleware.NewRateLimiter(cfg.Server.RateLimitPerMin, cfg.Server.RateLimitBurst, log),
		securityLogger: NewSecurityLogger(log),
		healthChecker:  NewHealthChecker(deps.Storage, Version),
	}
	if p, ok := deps.Tokens.(Pinger); ok {
		s.healthChecker.Optional("tokens", p)
	}
	s.engine = s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        s.engine,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	return s, nil
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Authenticator возвращает проверяющего bearer токены
func (s *Server) Authenticator() *Authenticator {
	return s.auth
}

// setupRoutes настраивает маршруты с middleware
func (s *Server) setupRoutes() *gin.Engine {
	if s.config.Server.GinMode != "" {
		gin.SetMode(s.config.Server.GinMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		securityHeaders(),
		s.requestLogger(),
		middleware.Prometheus(),
		cors.New(s.corsConfig()),
		limitBody(maxBodyBytes),
	)

	r.GET("/health", s.healthChecker.Handle)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(apiPrefix)
	api.POST("/telegram/webhook", s.webhookSecret(s.config.Telegram.SecretToken), s.handleWebhook)

	limited := api.Group("", middleware.RateLimit(s.rateLimiter), s.identity())
	{
		limited.GET("/tables", s.handleListTables)
		limited.GET("/tables/stats", s.handleTableStats)
		limited.GET("/tables/next-name", s.handleNextTableName)
		limited.POST("/tables", s.handleCreateTable)
		limited.PATCH("/tables/:id", s.handleUpdateTable)
		limited.DELETE("/tables/:id", s.handleDeleteTable)
		limited.POST("/tables/join", s.handleJoinTables)
		limited.POST("/tables/unjoin", s.handleUnjoinTables)

		limited.POST("/reservations", s.handleCreateReservation)
		limited.GET("/reservations/pending", s.handlePendingReservations)
		limited.GET("/dashboard-status", s.handleDashboardStatus)

		limited.POST("/telegram/link-token", s.handleLinkToken)
		limited.GET("/telegram/language/:chat_id", s.handleGetLanguage)
		limited.POST("/telegram/language/:chat_id", s.handleSetLanguage)

		limited.POST("/restaurants", s.handleCreateRestaurant)
		limited.GET("/restaurants/:id", s.handleGetRestaurant)
		limited.POST("/restaurants/:id/admins", s.handleCreateAdmin)
	}

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	cfg.MaxAge = 12 * time.Hour

	origins := s.config.Server.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Start запускает сервер и блокируется до отмены контекста
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", logger.String("addr", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown корректно завершает работу сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.securityLogger.LogSystemEvent("server_shutdown", "info")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.rateLimiter.Close()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during server shutdown", logger.Error(err))
		s.securityLogger.LogSystemEvent("server_shutdown_error", "error")
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
