package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/autogram/autogram/internal/activity"
	"github.com/autogram/autogram/internal/api/auth"
	"github.com/autogram/autogram/internal/config"
	"github.com/autogram/autogram/internal/rules"
)

// Archiver mirrors accepted events into durable storage. Optional; the
// in-memory store stays authoritative either way.
type Archiver interface {
	ArchiveComment(ctx context.Context, e activity.CommentEvent)
	ArchiveDM(ctx context.Context, e activity.DMEvent)
}

// Notifier publishes failed events for alerting. Optional.
type Notifier interface {
	NotifyCommentFailure(ctx context.Context, e activity.CommentEvent)
	NotifyDMFailure(ctx context.Context, e activity.DMEvent)
}

// Options carries the collaborators a Server needs.
type Options struct {
	Config   *config.Config
	Store    *activity.Store
	Service  *activity.Service
	Rules    *rules.Store
	Users    *auth.UserStore
	Tokens   *auth.TokenService
	Archiver Archiver // may be nil
	Notifier Notifier // may be nil
}

// Server represents the API server
type Server struct {
	echo     *echo.Echo
	port     int
	store    *activity.Store
	service  *activity.Service
	rules    *rules.Store
	tokens   *auth.TokenService
	authH    *auth.Handlers
	archiver Archiver
	notifier Notifier
	webhook  webhookConfig
}

type webhookConfig struct {
	verifyToken string
	appSecret   string
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.Config.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}))

	server := &Server{
		echo:     e,
		port:     opts.Config.Server.Port,
		store:    opts.Store,
		service:  opts.Service,
		rules:    opts.Rules,
		tokens:   opts.Tokens,
		authH:    auth.NewHandlers(opts.Users, opts.Tokens),
		archiver: opts.Archiver,
		notifier: opts.Notifier,
		webhook: webhookConfig{
			verifyToken: opts.Config.Webhook.VerifyToken,
			appSecret:   opts.Config.Webhook.AppSecret,
		},
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	requireAuth := auth.RequireAuth(s.tokens)
	writeLimit := rateLimitByIP(10, 20)

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	s.authH.Register(v1.Group("/auth"))

	// Activity log endpoints
	logs := v1.Group("/logs")
	logs.GET("/comments", s.getCommentLogs)
	logs.GET("/dms", s.getDMLogs)
	logs.GET("/stats", s.getStatistics)
	logs.GET("/stats/daily", s.getDailyStats)
	logs.GET("/stats/by-rule", s.getRuleStats)
	logs.POST("/comments", s.createCommentLog, requireAuth, writeLimit)
	logs.POST("/dms", s.createDMLog, requireAuth, writeLimit)
	logs.DELETE("/comments/:id", s.deleteCommentLog, requireAuth)
	logs.DELETE("/dms/:id", s.deleteDMLog, requireAuth)
	logs.POST("/clear", s.clearLogs, requireAuth)

	// Rules endpoints
	rg := v1.Group("/rules")
	rg.GET("", s.listRules)
	rg.GET("/stats/summary", s.getRulesSummary)
	rg.GET("/:id", s.getRule)
	rg.POST("", s.createRule, requireAuth)
	rg.PUT("/:id", s.updateRule, requireAuth)
	rg.PATCH("/:id/toggle", s.toggleRule, requireAuth)
	rg.DELETE("/:id", s.deleteRule, requireAuth)
	rg.POST("/bulk-delete", s.bulkDeleteRules, requireAuth)

	// Webhook endpoints
	wh := v1.Group("/webhooks", rateLimitByIP(30, 60))
	wh.GET("/instagram", s.verifyWebhook)
	wh.POST("/instagram", s.handleInstagramWebhook)
}

// Start begins the API server
func (s *Server) Start() error {
	// Start server in a goroutine
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
