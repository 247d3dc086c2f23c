// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"artify/internal/auth"
	"artify/internal/common"
	"artify/internal/config"
	"artify/internal/invitation"
	"artify/internal/jobs"
	"artify/internal/middleware"
	"artify/internal/profile"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	provider  *auth.Provider
	scheduler *jobs.Scheduler

	startCtx    context.Context
	cancelStart context.CancelFunc
}

// MediaRoute is where uploaded files are served.
const MediaRoute = "/media"

// View is the payload of the guarded page routes.
type View struct {
	Name string     `json:"view"`
	User *auth.User `json:"user,omitempty"`
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	provider *auth.Provider,
	authHandler *auth.Handler,
	profileHandler *profile.Handler,
	invitationHandler *invitation.Handler,
	scheduler *jobs.Scheduler,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	guard := func(api bool, roles ...common.Role) gin.HandlerFunc {
		return middleware.RouteGuard(provider, middleware.GuardOptions{
			SignInPath:   cfg.SignInPath,
			FallbackPath: cfg.FallbackPath,
			Roles:        roles,
			API:          api,
		}, logger)
	}

	router.GET("/health", func(c *gin.Context) {
		snap := provider.Snapshot()
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Artify is healthy!", "auth_loading": snap.IsLoading})
	})

	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1, guard(true))
	profileHandler.RegisterRoutes(v1, guard(true, common.RoleAdmin))
	invitationHandler.RegisterRoutes(v1, guard(true, common.RoleAdmin))

	// Browser-facing pages.
	authHandler.RegisterPages(router)
	if cfg.MediaPath != "" {
		router.Static(MediaRoute, cfg.MediaPath)
	}
	router.GET("/", view("home"))
	router.GET(cfg.SignInPath, view("sign-in"))
	router.GET("/app", guard(false), view("dashboard"))
	router.GET("/app/upload", guard(false, common.RoleSeller), view("upload"))
	router.GET("/admin", guard(false, common.RoleAdmin), view("admin"))

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	startCtx, cancelStart := context.WithCancel(context.Background())
	return &Server{
		httpServer:  httpServer,
		router:      router,
		cfg:         cfg,
		logger:      logger,
		provider:    provider,
		scheduler:   scheduler,
		startCtx:    startCtx,
		cancelStart: cancelStart,
	}, nil
}

func view(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		common.RespondOK(c, "", View{Name: name, User: middleware.CurrentUser(c)})
	}
}

// Router exposes the HTTP handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start restores the session in the background, so guarded routes answer
// with the loading page until it settles, then serves HTTP.
func (s *Server) Start() error {
	go s.provider.Start(s.startCtx)
	if s.scheduler != nil {
		s.scheduler.Start()
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

// Shutdown stops the jobs, drains HTTP and releases the session subscription.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	s.cancelStart()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	err := s.httpServer.Shutdown(ctx)
	s.provider.Close()
	return err
}
